// transport.go - Host byte-stream transports: CDC tty, TCP and file playback

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/term"
)

// Transport is the host connection as seen by the device loop. Read must
// never block: it returns (0, nil) when no bytes are available. A false
// Connected marks the session as detached; the loop resets the parser and
// host queue and waits for the next session.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Connected() bool
	Close() error
}

// TTYTransport talks to a USB CDC serial device node. The fd is switched to
// raw mode (no line discipline mangling the binary stream) and non-blocking
// so the poll loop never stalls on a quiet host.
type TTYTransport struct {
	f        *os.File
	fd       int
	oldState *term.State
	attached atomic.Bool
}

func NewTTYTransport(device string) (*TTYTransport, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	t := &TTYTransport{f: f, fd: int(f.Fd())}

	if state, err := term.MakeRaw(t.fd); err == nil {
		t.oldState = state
	}
	if err := syscall.SetNonblock(t.fd, true); err != nil {
		f.Close()
		return nil, fmt.Errorf("set nonblock %s: %w", device, err)
	}

	t.attached.Store(true)
	return t, nil
}

func (t *TTYTransport) Read(p []byte) (int, error) {
	n, err := syscall.Read(t.fd, p)
	if n < 0 {
		n = 0
	}
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || err == syscall.EINTR {
			return n, nil
		}
		// EIO / ENXIO: the CDC endpoint went away.
		t.attached.Store(false)
		return n, err
	}
	return n, nil
}

func (t *TTYTransport) Write(p []byte) (int, error) {
	n, err := syscall.Write(t.fd, p)
	if n < 0 {
		n = 0
	}
	if err != nil && err != syscall.EAGAIN {
		t.attached.Store(false)
	}
	return n, nil
}

func (t *TTYTransport) Connected() bool { return t.attached.Load() }

func (t *TTYTransport) Close() error {
	if t.oldState != nil {
		term.Restore(t.fd, t.oldState)
	}
	t.attached.Store(false)
	return t.f.Close()
}

// TCPTransport serves one streaming client at a time on a listening socket.
// A reader goroutine pumps socket bytes into a channel so the device-side
// Read stays non-blocking.
type TCPTransport struct {
	listener net.Listener
	mu       sync.Mutex
	conn     net.Conn
	incoming chan []byte
	carry    []byte
	attached atomic.Bool
	closed   atomic.Bool
}

func NewTCPTransport(addr string) (*TCPTransport, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	t := &TCPTransport{
		listener: listener,
		incoming: make(chan []byte, 64),
	}
	go t.acceptLoop()
	return t, nil
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return
			}
			continue
		}
		t.mu.Lock()
		if t.conn != nil {
			// One host at a time; a new connection replaces the current one.
			t.conn.Close()
		}
		t.conn = conn
		t.mu.Unlock()
		t.attached.Store(true)
		go t.readLoop(conn)
	}
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	for {
		buf := make([]byte, 2048)
		n, err := conn.Read(buf)
		if n > 0 {
			t.incoming <- buf[:n]
		}
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.attached.Store(false)
			}
			t.mu.Unlock()
			return
		}
	}
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	if len(t.carry) == 0 {
		select {
		case chunk := <-t.incoming:
			t.carry = chunk
		default:
			return 0, nil
		}
	}
	n := copy(p, t.carry)
	t.carry = t.carry[n:]
	return n, nil
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, nil
	}
	return conn.Write(p)
}

func (t *TCPTransport) Connected() bool { return t.attached.Load() }

func (t *TCPTransport) Close() error {
	t.closed.Store(true)
	t.attached.Store(false)
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()
	return t.listener.Close()
}

// FileTransport replays a captured stream from a file or FIFO. The session
// detaches at EOF.
type FileTransport struct {
	f        *os.File
	attached atomic.Bool
}

func NewFileTransport(path string) (*FileTransport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &FileTransport{f: f}
	t.attached.Store(true)
	return t, nil
}

func (t *FileTransport) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if err != nil {
		t.attached.Store(false)
		return n, nil
	}
	return n, nil
}

func (t *FileTransport) Write(p []byte) (int, error) {
	// Handshake and logs have nowhere to go on playback.
	return len(p), nil
}

func (t *FileTransport) Connected() bool { return t.attached.Load() }

func (t *FileTransport) Close() error {
	t.attached.Store(false)
	return t.f.Close()
}
