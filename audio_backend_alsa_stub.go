//go:build !alsa || headless

package main

import "errors"

type ALSASink struct{}

func newALSASink(sampleRate int, pool *BufferPool) (*ALSASink, error) {
	return nil, errors.New("built without alsa tag: no ALSA backend")
}

func (s *ALSASink) Start() error { return nil }
func (s *ALSASink) Stop()        {}
func (s *ALSASink) Close()       {}
