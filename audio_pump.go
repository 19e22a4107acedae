// audio_pump.go - Audio buffer pool and the pump that fills it from the scheduler

package main

import "sync/atomic"

// AudioBuffer is one fixed-size block of interleaved stereo S16 frames.
type AudioBuffer struct {
	Samples     []int16 // interleaved L/R, len = 2*cap frames
	SampleCount int     // stereo frames actually filled
}

// BufferPool cycles a fixed set of buffers between the pump (producer) and
// an audio sink (consumer). Take/Give never block on the producer side;
// sinks drain Ready at their own rate. Buffers travel in the order they
// were taken, single-producer discipline.
type BufferPool struct {
	free      chan *AudioBuffer
	ready     chan *AudioBuffer
	frames    int
	underruns atomic.Uint32
}

// NewBufferPool allocates count buffers of frames stereo frames each.
func NewBufferPool(count, frames int) *BufferPool {
	if count < 2 {
		count = 2
	}
	if frames < 1 {
		frames = DEFAULT_BUFFER_FRAMES
	}
	p := &BufferPool{
		free:   make(chan *AudioBuffer, count),
		ready:  make(chan *AudioBuffer, count),
		frames: frames,
	}
	for i := 0; i < count; i++ {
		p.free <- &AudioBuffer{Samples: make([]int16, frames*2)}
	}
	return p
}

func (p *BufferPool) Frames() int { return p.frames }

// TakeFree returns a free buffer or nil without blocking.
func (p *BufferPool) TakeFree() *AudioBuffer {
	select {
	case buf := <-p.free:
		return buf
	default:
		return nil
	}
}

// GiveReady hands a filled buffer to the sink side.
func (p *BufferPool) GiveReady(buf *AudioBuffer) {
	p.ready <- buf
}

// TakeReady returns the next filled buffer or nil without blocking. A nil
// return is an underrun from the sink's point of view and is counted.
func (p *BufferPool) TakeReady() *AudioBuffer {
	select {
	case buf := <-p.ready:
		return buf
	default:
		p.underruns.Add(1)
		return nil
	}
}

// GiveFree recycles a drained buffer.
func (p *BufferPool) GiveFree(buf *AudioBuffer) {
	buf.SampleCount = 0
	p.free <- buf
}

// Underruns counts sink-side reads that found no ready buffer.
func (p *BufferPool) Underruns() uint32 { return p.underruns.Load() }

// SampleTap observes rendered frames on their way to the sink. The WAV
// recorder implements it.
type SampleTap interface {
	WriteFrames(samples []int16) error
}

// AudioPump fills pool buffers from the scheduler, one stereo frame per
// RenderSample call. Service is a no-op when no buffer is free, so the
// event/audio loop can call it every iteration.
type AudioPump struct {
	engine *SIDEngine
	pool   *BufferPool
	tap    SampleTap
}

func NewAudioPump(engine *SIDEngine, pool *BufferPool) *AudioPump {
	return &AudioPump{engine: engine, pool: pool}
}

// SetTap installs a sample observer (nil to remove).
func (ap *AudioPump) SetTap(tap SampleTap) {
	ap.tap = tap
}

// Prime fills two buffers up front so the sink does not start on an
// underrun.
func (ap *AudioPump) Prime() {
	for i := 0; i < 2; i++ {
		if !ap.Service() {
			return
		}
	}
}

// Service fills at most one free buffer. Returns whether a buffer was
// filled.
func (ap *AudioPump) Service() bool {
	buf := ap.pool.TakeFree()
	if buf == nil {
		return false
	}
	ap.fill(buf)
	ap.pool.GiveReady(buf)
	return true
}

func (ap *AudioPump) fill(buf *AudioBuffer) {
	frames := ap.pool.frames
	for i := 0; i < frames; i++ {
		ap.engine.RenderSample(&buf.Samples[i*2], &buf.Samples[i*2+1])
	}
	buf.SampleCount = frames
	if ap.tap != nil {
		// Tap errors must not stall rendering; the recorder reports its
		// own failures when closed.
		_ = ap.tap.WriteFrames(buf.Samples[:frames*2])
	}
}
