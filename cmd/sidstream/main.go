// main.go - Stream a SID register capture to a Siddler device

package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

func main() {
	device := flag.String("device", "", "Serial device node (e.g. /dev/ttyACM0)")
	tcpAddr := flag.String("tcp", "", "TCP address of a listening device (e.g. localhost:6581)")
	raw := flag.Bool("raw4", false, "Input is a raw 4-byte event capture")
	muteMask := flag.Uint("mute", 0, "Voice mute bitmask (bit i mutes voice i)")
	noFilter := flag.Bool("no-filter", false, "Strip filter register writes")
	clockPct := flag.Uint("clock-pct", 100, "Playback clock scale percent (20-300)")
	cycleMode := flag.Bool("cycle-mode", false, "Send a CYCLE_MODE command before streaming")
	skipReady := flag.Bool("no-wait", false, "Do not wait for the device READY line")
	verbose := flag.Bool("v", false, "Verbose frame logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sidstream [options] capture.bin\n\nStreams a SID register capture to a Siddler device over serial or TCP.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	in, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidstream: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	var port io.ReadWriteCloser
	switch {
	case *device != "":
		port, err = openSerial(*device)
	case *tcpAddr != "":
		port, err = net.Dial("tcp", *tcpAddr)
	default:
		fmt.Fprintln(os.Stderr, "sidstream: need -device or -tcp")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidstream: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	if !*skipReady {
		fmt.Fprintln(os.Stderr, "[info] waiting for READY...")
		if err := waitReady(port, 10*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "sidstream: %v\n", err)
			os.Exit(1)
		}
	}

	frameIndex := uint32(0)

	// Front-load control state so the device starts configured.
	if *cycleMode {
		port.Write(buildCommandFrame(frameIndex, cmdCycleMode, 0, 0, 0))
		frameIndex++
	}
	if *muteMask != 0 {
		port.Write(buildCommandFrame(frameIndex, cmdSetVoiceMask, uint8(*muteMask), 0, 0))
		frameIndex++
	}
	if *noFilter {
		port.Write(buildCommandFrame(frameIndex, cmdSetFilter, 0, 0, 0))
		frameIndex++
	}
	if *clockPct != 100 {
		if *clockPct < 20 || *clockPct > 300 {
			fmt.Fprintln(os.Stderr, "sidstream: -clock-pct out of range 20-300")
			os.Exit(1)
		}
		ppm100 := uint16(*clockPct * 100) // device multiplies by 100 to get ppm
		port.Write(buildCommandFrame(frameIndex, cmdSetClockScale,
			uint8(ppm100), uint8(ppm100>>8), 0))
		frameIndex++
	}

	var stats streamStats
	var pace pacer
	reader := newFrameReader(in, *raw)

	for {
		events, srcFrame, err := reader.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "sidstream: %v\n", err)
			os.Exit(1)
		}

		events = applyVoiceFiltering(events, uint8(*muteMask), !*noFilter)

		var frameCycles uint64
		for _, ev := range events {
			frameCycles += uint64(ev.delta)
		}

		frame := buildFrame(frameIndex, events)
		if _, err := port.Write(frame); err != nil {
			fmt.Fprintf(os.Stderr, "sidstream: write: %v\n", err)
			os.Exit(1)
		}
		frameIndex++

		stats.frames++
		stats.events += uint64(len(events))
		stats.bytes += uint64(len(frame))
		stats.totalCycles += frameCycles

		if *verbose {
			fmt.Fprintf(os.Stderr, "[frame] #%d src=%d events=%d cycles=%d\n",
				frameIndex-1, srcFrame, len(events), frameCycles)
		}

		if frameCycles == 0 {
			frameCycles = palCyclesFrame
		}
		if sleep := pace.pause(frameCycles); sleep > 0 {
			time.Sleep(sleep)
		}
	}

	seconds := float64(stats.totalCycles) / sidClockHz
	fmt.Fprintf(os.Stderr, "[done] %d frames, %d events, %d bytes, %.1fs of SID time\n",
		stats.frames, stats.events, stats.bytes, seconds)
}

// serialPort wraps a raw-mode tty fd.
type serialPort struct {
	f        *os.File
	fd       int
	oldState *term.State
}

func openSerial(path string) (*serialPort, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	p := &serialPort{f: f, fd: int(f.Fd())}
	// Raw mode keeps the tty layer from eating the binary stream.
	if state, err := term.MakeRaw(p.fd); err == nil {
		p.oldState = state
	}
	return p, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := syscall.Read(p.fd, b)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (p *serialPort) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *serialPort) Close() error {
	if p.oldState != nil {
		term.Restore(p.fd, p.oldState)
	}
	return p.f.Close()
}
