// status_view.go - Terminal renderer for the telemetry status surface

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// StatusView renders the telemetry status lines to the controlling
// terminal on its own goroutine, the stand-in for the firmware's scanout
// core. It only ever reads the telemetry snapshot; on lock contention it
// redraws the previous frame, so rendering never perturbs the audio loop.
type StatusView struct {
	telemetry *Telemetry
	out       *os.File
	stop      chan struct{}
	done      chan struct{}
}

func NewStatusView(telemetry *Telemetry) *StatusView {
	return &StatusView{
		telemetry: telemetry,
		out:       os.Stdout,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the 10 Hz refresh. No-op when stdout is not a terminal.
func (v *StatusView) Start() {
	if !term.IsTerminal(int(v.out.Fd())) {
		close(v.done)
		return
	}
	go v.loop()
}

func (v *StatusView) loop() {
	defer close(v.done)

	// Clear once, hide the cursor, then repaint in place.
	fmt.Fprint(v.out, "\x1b[2J\x1b[?25l")
	defer fmt.Fprint(v.out, "\x1b[?25h\x1b[2J\x1b[H")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			v.paint()
		}
	}
}

func (v *StatusView) paint() {
	rows := TEXT_ROWS
	if _, termRows, err := term.GetSize(int(v.out.Fd())); err == nil && termRows < rows {
		rows = termRows
	}

	lines := v.telemetry.SnapshotLines()
	var sb strings.Builder
	sb.WriteString("\x1b[H")
	for row := 0; row < rows; row++ {
		sb.WriteString(lines[row])
		sb.WriteString("\x1b[K\r\n")
	}
	fmt.Fprint(v.out, sb.String())
}

// Stop halts the renderer and restores the terminal.
func (v *StatusView) Stop() {
	select {
	case <-v.stop:
	default:
		close(v.stop)
	}
	<-v.done
}
