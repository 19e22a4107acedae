// audio_record.go - WAV capture of the rendered stereo stream

package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavRecorder taps the sample pump and writes everything rendered to a
// 16-bit stereo RIFF/WAV file. Frames are buffered and flushed in chunks so
// the tap stays cheap on the render path.
type WavRecorder struct {
	f       *os.File
	enc     *wav.Encoder
	pending []int
	format  *audio.Format
	failed  bool
}

const wavFlushFrames = 4096

// NewWavRecorder creates or truncates path and writes the WAV header.
func NewWavRecorder(path string, sampleRate int) (*WavRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	return &WavRecorder{
		f:       f,
		enc:     enc,
		pending: make([]int, 0, wavFlushFrames*2),
		format:  &audio.Format{NumChannels: 2, SampleRate: sampleRate},
	}, nil
}

// WriteFrames implements SampleTap for interleaved stereo samples.
func (r *WavRecorder) WriteFrames(samples []int16) error {
	if r.failed {
		return nil
	}
	for _, s := range samples {
		r.pending = append(r.pending, int(s))
	}
	if len(r.pending) >= wavFlushFrames*2 {
		return r.flush()
	}
	return nil
}

func (r *WavRecorder) flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	buf := &audio.IntBuffer{
		Format:         r.format,
		Data:           r.pending,
		SourceBitDepth: 16,
	}
	if err := r.enc.Write(buf); err != nil {
		r.failed = true
		return fmt.Errorf("wav write: %w", err)
	}
	r.pending = r.pending[:0]
	return nil
}

// Close flushes pending samples and finalizes the RIFF header.
func (r *WavRecorder) Close() error {
	flushErr := r.flush()
	encErr := r.enc.Close()
	fileErr := r.f.Close()
	if r.failed {
		return fmt.Errorf("wav recording failed mid-stream")
	}
	if flushErr != nil {
		return flushErr
	}
	if encErr != nil {
		return fmt.Errorf("wav finalize: %w", encErr)
	}
	return fileErr
}
