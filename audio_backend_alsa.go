//go:build alsa && !headless

// audio_backend_alsa.go - ALSA audio output implementation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int rate) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_S16_LE);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, 2);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, short* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void closePCM(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"
import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// ALSASink writes the stereo S16 stream straight to an ALSA PCM device,
// bypassing the portable oto path. A feeder goroutine drains the pool;
// snd_pcm_writei provides the pacing.
type ALSASink struct {
	handle *C.snd_pcm_t
	pool   *BufferPool
	stop   chan struct{}
	done   chan struct{}

	started bool
	mutex   sync.Mutex
}

func newALSASink(sampleRate int, pool *BufferPool) (*ALSASink, error) {
	var cerr C.int
	cdev := C.CString("default")
	defer C.free(unsafe.Pointer(cdev))
	handle := C.openPCM(cdev, &cerr)
	if cerr < 0 {
		return nil, fmt.Errorf("open PCM device: %s", C.GoString(C.snd_strerror(cerr)))
	}

	if cerr = C.setupPCM(handle, C.uint(sampleRate)); cerr < 0 {
		C.closePCM(handle)
		return nil, fmt.Errorf("setup PCM: %s", C.GoString(C.snd_strerror(cerr)))
	}

	return &ALSASink{
		handle: handle,
		pool:   pool,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (s *ALSASink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	go s.feed()
	return nil
}

func (s *ALSASink) feed() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		buf := s.pool.TakeReady()
		if buf == nil {
			time.Sleep(time.Millisecond)
			continue
		}
		frames := C.writePCM(s.handle,
			(*C.short)(unsafe.Pointer(&buf.Samples[0])), C.int(buf.SampleCount))
		if frames == -C.EPIPE {
			C.snd_pcm_prepare(s.handle)
			C.writePCM(s.handle,
				(*C.short)(unsafe.Pointer(&buf.Samples[0])), C.int(buf.SampleCount))
		}
		s.pool.GiveFree(buf)
	}
}

func (s *ALSASink) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
	s.started = false
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
}

func (s *ALSASink) Close() {
	s.Stop()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.handle != nil {
		C.closePCM(s.handle)
		s.handle = nil
	}
}
