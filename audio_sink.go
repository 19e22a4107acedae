// audio_sink.go - Audio backend selection

package main

import "fmt"

// Audio backend identifiers accepted by -backend.
const (
	AUDIO_BACKEND_OTO  = "oto"
	AUDIO_BACKEND_SDL  = "sdl"
	AUDIO_BACKEND_ALSA = "alsa"
	AUDIO_BACKEND_NONE = "none"
)

// AudioSink drains the buffer pool into an output device.
type AudioSink interface {
	Start() error
	Stop()
	Close()
}

// NewAudioSink builds the named backend over the pool. "none" renders into
// the void at the sink's own pace, for file-driven runs where wall-clock
// audio is not wanted.
func NewAudioSink(backend string, sampleRate int, pool *BufferPool) (AudioSink, error) {
	switch backend {
	case AUDIO_BACKEND_OTO:
		return newOtoSink(sampleRate, pool)
	case AUDIO_BACKEND_SDL:
		return newSDLSink(sampleRate, pool)
	case AUDIO_BACKEND_ALSA:
		return newALSASink(sampleRate, pool)
	case AUDIO_BACKEND_NONE:
		return newNullSink(pool), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// nullSink drains ready buffers without playing them, so the pump never
// stalls when no audio device is wanted.
type nullSink struct {
	pool *BufferPool
	stop chan struct{}
}

func newNullSink(pool *BufferPool) *nullSink {
	return &nullSink{pool: pool, stop: make(chan struct{})}
}

func (s *nullSink) Start() error {
	go func() {
		for {
			select {
			case <-s.stop:
				return
			case buf := <-s.pool.ready:
				s.pool.GiveFree(buf)
			}
		}
	}()
	return nil
}

func (s *nullSink) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

func (s *nullSink) Close() { s.Stop() }
