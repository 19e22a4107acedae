//go:build sdl && !headless

// audio_backend_sdl.go - SDL2 audio output implementation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// SDLSink pushes the stereo S16 stream through SDL's queued-audio API. A
// feeder goroutine drains the pool and lets SDL's device queue provide the
// pacing; the queue is kept shallow so control changes stay audible quickly.
type SDLSink struct {
	dev        sdl.AudioDeviceID
	pool       *BufferPool
	sampleRate int
	stop       chan struct{}
	done       chan struct{}

	started bool
	mutex   sync.Mutex
}

func newSDLSink(sampleRate int, pool *BufferPool) (*SDLSink, error) {
	if err := sdl.Init(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}

	spec := &sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_S16SYS,
		Channels: 2,
		Samples:  uint16(pool.Frames()),
	}
	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("sdl open audio: %w", err)
	}

	return &SDLSink{
		dev:        dev,
		pool:       pool,
		sampleRate: sampleRate,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (s *SDLSink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	sdl.PauseAudioDevice(s.dev, false)
	go s.feed()
	return nil
}

func (s *SDLSink) feed() {
	defer close(s.done)
	// Keep roughly four buffers of audio queued; beyond that, back off and
	// let the device drain.
	maxQueued := uint32(s.pool.Frames() * 4 * 4)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if sdl.GetQueuedAudioSize(s.dev) > maxQueued {
			time.Sleep(time.Millisecond)
			continue
		}
		buf := s.pool.TakeReady()
		if buf == nil {
			time.Sleep(time.Millisecond)
			continue
		}
		raw := make([]byte, buf.SampleCount*4)
		for i, v := range buf.Samples[:buf.SampleCount*2] {
			raw[i*2] = byte(v)
			raw[i*2+1] = byte(uint16(v) >> 8)
		}
		if err := sdl.QueueAudio(s.dev, raw); err != nil {
			fmt.Printf("[AUDIO] sdl queue: %v\n", err)
		}
		s.pool.GiveFree(buf)
	}
}

func (s *SDLSink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
	sdl.PauseAudioDevice(s.dev, true)
	s.started = false
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
}

func (s *SDLSink) Close() {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.dev != 0 {
		sdl.CloseAudioDevice(s.dev)
		s.dev = 0
	}
}
