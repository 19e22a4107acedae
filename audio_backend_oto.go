//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoSink feeds the stereo S16 stream to the OS mixer through oto. The oto
// player pulls via Read on its own goroutine; an empty pool reads as
// silence rather than blocking the device.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	pool   *BufferPool

	cur    *AudioBuffer
	curOff int // consumed int16s in cur

	started bool
	mutex   sync.Mutex // setup/control only; Read stays lock-free
}

func newOtoSink(sampleRate int, pool *BufferPool) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &OtoSink{ctx: ctx, pool: pool}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

func (s *OtoSink) Read(p []byte) (int, error) {
	n := 0
	for n+1 < len(p) {
		if s.cur == nil {
			s.cur = s.pool.TakeReady()
			s.curOff = 0
			if s.cur == nil {
				// Underrun: pad the rest with silence.
				for ; n < len(p); n++ {
					p[n] = 0
				}
				return n, nil
			}
		}
		samples := s.cur.Samples[:s.cur.SampleCount*2]
		for s.curOff < len(samples) && n+1 < len(p) {
			v := samples[s.curOff]
			p[n] = byte(v)
			p[n+1] = byte(uint16(v) >> 8)
			n += 2
			s.curOff++
		}
		if s.curOff >= len(samples) {
			s.pool.GiveFree(s.cur)
			s.cur = nil
		}
	}
	return n, nil
}

func (s *OtoSink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		s.player.Play()
		s.started = true
	}
	return nil
}

func (s *OtoSink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		s.player.Pause()
		s.started = false
	}
}

func (s *OtoSink) Close() {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
}
