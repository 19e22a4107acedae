//go:build headless

package main

import "errors"

type OtoSink struct{}

func newOtoSink(sampleRate int, pool *BufferPool) (*OtoSink, error) {
	return nil, errors.New("built headless: no oto backend")
}

func (s *OtoSink) Start() error { return nil }
func (s *OtoSink) Stop()        {}
func (s *OtoSink) Close()       {}
