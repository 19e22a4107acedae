// device_status.go - Status surface composition for the four debug views

package main

import (
	"fmt"
	"time"
)

func (d *Device) updateStatusScreen() {
	d.telemetry.ClearStatusLines()
	switch d.view {
	case VIEW_USB_QUEUE:
		d.renderUSBQueueView()
	case VIEW_SID_QUEUE:
		d.renderSIDQueueView()
	case VIEW_HEX:
		d.renderHexView()
	default:
		d.renderStatusView()
	}
}

func (d *Device) renderStatusView() {
	t := d.telemetry
	cycles := t.TotalCycles()
	clock := uint64(d.cfg.ClockHz)
	seconds := cycles / clock
	millis := (cycles % clock) * 1000 / clock
	lastDelta, lastAddr, lastValue := t.LastEvent()
	minDur, avgDur, maxDur, _ := t.FrameDurations()

	audioState := "OK"
	if d.transport == nil {
		audioState = "N/A"
	}
	streamState := "OFF"
	if d.streaming {
		streamState = "ON "
	}
	pausedState := " NO"
	if d.paused {
		pausedState = "YES"
	}
	flowState := "OK  "
	if d.flow.Paused() {
		flowState = "HALT"
	}

	t.Statusf(0, "SIDDLER [%s]", d.view)
	t.Statusf(1, "Events:%10d  Bytes:%10d", t.TotalEvents(), t.TotalBytes())
	t.Statusf(2, "Time  : %5d.%03ds  Frames:%8d", seconds, millis, t.Frames())
	t.Statusf(3, "Last  : d=%-6d addr=$%02X val=$%02X", lastDelta, lastAddr, lastValue)
	t.Statusf(4, "Stream:%s  Paused:%s  Audio:%s", streamState, pausedState, audioState)
	t.Statusf(5, "Clock : %3d.%02d%%  %7d Hz",
		d.clockScalePPM/10000, (d.clockScalePPM/100)%100, d.effectiveClockHz())
	t.Statusf(6, "USBQ  : %4d (max %4d) cyc=%8d %s",
		d.hostQueue.Depth(), d.hostQueue.PeakDepth(), d.hostQueue.TotalCycles(), flowState)
	t.Statusf(7, "SIDQ  : depth=%4d drop=%4d",
		d.engine.GetQueueDepth(), d.engine.GetDroppedEventCount())
	t.Statusf(8, "Parse : %s/%s/%s drift=%+d",
		fmtDur(minDur), fmtDur(avgDur), fmtDur(maxDur), t.Drift())
	t.Statusf(9, "CDC   : %7.1f kbps  resync=%d", t.ThroughputKbps(), d.parser.ResyncBytes())
	t.Statusf(10, "SID   : %s", d.engine.Mode())

	mon := d.engine.GetMonitor()
	for voice := 0; voice < 3; voice++ {
		t.Statusf(12+voice, "V%d    : f=%5d ctl=$%02X env=%3d",
			voice+1, mon.VoiceFreq[voice], mon.VoiceControl[voice], mon.VoiceEnvelope[voice])
	}
	t.Statusf(15, "Filt  : fc=%4d res=%2d mode=$%X",
		mon.FilterCutoff, mon.FilterResonance, mon.FilterMode)
}

func (d *Device) renderUSBQueueView() {
	t := d.telemetry
	flowState := "OK"
	if d.flow.Paused() {
		flowState = "HALT"
	}
	t.Statusf(0, "USB QUEUE depth=%d flow=%s", d.hostQueue.Depth(), flowState)
	t.Statusf(1, "Max depth: %d  dropped: %d", d.hostQueue.PeakDepth(), d.hostQueue.Dropped())

	var snapshot [10]SIDEvent
	shown := d.hostQueue.Snapshot(snapshot[:])
	if shown == 0 {
		t.SetStatusLine(3, "Queue empty")
		return
	}
	for i := 0; i < shown && i+2 < TEXT_ROWS; i++ {
		t.Statusf(2+i, "%2d: +%6d addr $%02X = $%02X",
			i, snapshot[i].Delta, snapshot[i].Addr, snapshot[i].Value)
	}
}

func (d *Device) renderSIDQueueView() {
	t := d.telemetry
	var entries [12]SIDEvent
	got, cyclesToNext := d.engine.PeekQueue(entries[:])

	t.Statusf(0, "SID ENGINE QUEUE depth=%d drop=%d",
		d.engine.GetQueueDepth(), d.engine.GetDroppedEventCount())
	if cyclesToNext == cyclesInfinite {
		t.SetStatusLine(1, "Next event: none pending")
	} else {
		t.Statusf(1, "Next event in %d cycles", cyclesToNext)
	}

	if got == 0 {
		t.SetStatusLine(3, "No pending SID events")
		return
	}
	for i := 0; i < got && i+2 < TEXT_ROWS; i++ {
		t.Statusf(2+i, "%2d: +%6d chip %d addr $%02X = $%02X",
			i, entries[i].Delta, entries[i].ChipMask, entries[i].Addr, entries[i].Value)
	}
}

func (d *Device) renderHexView() {
	t := d.telemetry
	const bytesPerLine = 8
	const maxLines = TEXT_ROWS - 2

	var recent [bytesPerLine * maxLines]byte
	shown, total := t.SnapshotRecent(recent[:])
	t.Statusf(0, "HEX RX (total %d bytes)", total)
	if shown == 0 {
		t.SetStatusLine(2, "No data captured yet")
		return
	}
	baseIndex := total - uint64(shown)

	for line := 0; line < maxLines; line++ {
		offset := line * bytesPerLine
		if offset >= shown {
			break
		}
		chunk := bytesPerLine
		if offset+chunk > shown {
			chunk = shown - offset
		}
		text := fmt.Sprintf("%08X:", baseIndex+uint64(offset))
		for i := 0; i < chunk; i++ {
			text += fmt.Sprintf(" %02X", recent[offset+i])
		}
		t.SetStatusLine(2+line, text)
	}
}

func fmtDur(d time.Duration) string {
	return fmt.Sprintf("%dus", d.Microseconds())
}
