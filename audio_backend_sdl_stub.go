//go:build !sdl || headless

package main

import "errors"

type SDLSink struct{}

func newSDLSink(sampleRate int, pool *BufferPool) (*SDLSink, error) {
	return nil, errors.New("built without sdl tag: no SDL backend")
}

func (s *SDLSink) Start() error { return nil }
func (s *SDLSink) Stop()        {}
func (s *SDLSink) Close()       {}
