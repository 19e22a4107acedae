// frame_parser.go - Resynchronizing state machine for the FDIS framed stream

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"encoding/binary"
	"time"
)

// FDIS wire constants. The magic is 0x53494446 as a little-endian u32,
// which puts the bytes 'F','D','I','S' on the wire.
const (
	FDIS_MAGIC      = 0x53494446
	CMD_FRAME_COUNT = 0xFFFF // count sentinel marking a command frame

	fdisHeaderLen10  = 10 // magic:u32, count:u16, frame:u32
	fdisHeaderLen12  = 12 // magic:u32, count:u16, pad:u16, frame:u32
	eventRecordLen6  = 6  // addr, value, delta:u32
	eventRecordLen8  = 8  // chip, addr, value, pad, delta:u32
	commandRecordLen = 4

	// A burst of resyncs inside one second means the stream is garbage or
	// hopelessly misaligned; discard the whole buffer rather than slide.
	resyncDiscardThreshold = 4096
)

// RecordProfile selects the event record width. The primary host tool emits
// 6-byte records; 8-byte hosts carry an explicit chip byte.
type RecordProfile int

const (
	RECORD_PROFILE_6 RecordProfile = iota
	RECORD_PROFILE_8
)

// HeaderProfile selects the header width. The 10-byte form is canonical for
// the host tools; the 12-byte form pads count to a 32-bit boundary.
type HeaderProfile int

const (
	HEADER_PROFILE_10 HeaderProfile = iota
	HEADER_PROFILE_12
)

// SIDCommand is one out-of-band control record.
type SIDCommand struct {
	Opcode uint8
	Param0 uint8
	Param1 uint8
	Param2 uint8
}

// EventSink receives parsed event records, in wire order.
type EventSink interface {
	PushEvent(ev SIDEvent)
}

// CommandSink receives parsed command records.
type CommandSink interface {
	HandleCommand(cmd SIDCommand)
}

// FrameSink receives per-frame accounting on frame completion.
type FrameSink interface {
	FrameComplete(events int, bytes int, duration time.Duration, frameIndex uint32)
}

// Parser states
const (
	psScanMagic = iota
	psReadEvents
	psReadCommand
)

// FrameParser consumes the framed host byte stream one Feed at a time,
// resynchronizing on any alignment error by sliding a single byte and
// rescanning for the magic. Event frames stream into the event sink record
// by record; command frames dispatch whole. Partial frames stay buffered
// across Feed calls.
type FrameParser struct {
	events    EventSink
	commands  CommandSink
	frames    FrameSink
	recProf   RecordProfile
	hdrProf   HeaderProfile
	headerLen int
	recordLen int

	// Fixed reassembly buffer: bytes live in buf[pos:fill].
	buf   [PARSER_BUFFER_SIZE]byte
	pos   int
	fill  int
	state int

	// In-flight frame
	pendingEvents int
	frameIndex    uint32
	frameBytes    int
	frameEvents   int
	frameStart    time.Time

	// Fault counters, read by telemetry
	resyncBytes     uint32
	oversizedCounts uint32
	bufferDiscards  uint32

	resyncWindow      time.Time
	resyncWindowCount uint32
}

// NewFrameParser builds a parser for the given profiles. The sinks must be
// non-nil.
func NewFrameParser(events EventSink, commands CommandSink, frames FrameSink,
	recProf RecordProfile, hdrProf HeaderProfile) *FrameParser {
	p := &FrameParser{
		events:   events,
		commands: commands,
		frames:   frames,
	}
	p.SetProfiles(recProf, hdrProf)
	return p
}

// SetProfiles switches the record and header widths. Only safe between
// frames; the device applies it at session start.
func (p *FrameParser) SetProfiles(recProf RecordProfile, hdrProf HeaderProfile) {
	p.recProf = recProf
	p.hdrProf = hdrProf
	p.recordLen = eventRecordLen6
	if recProf == RECORD_PROFILE_8 {
		p.recordLen = eventRecordLen8
	}
	p.headerLen = fdisHeaderLen10
	if hdrProf == HEADER_PROFILE_12 {
		p.headerLen = fdisHeaderLen12
	}
}

// Reset discards buffered bytes and any in-flight frame. Fault counters
// survive and keep counting across sessions.
func (p *FrameParser) Reset() {
	p.pos = 0
	p.fill = 0
	p.state = psScanMagic
	p.pendingEvents = 0
	p.frameBytes = 0
	p.frameEvents = 0
}

// Buffered returns the number of bytes awaiting parsing.
func (p *FrameParser) Buffered() int { return p.fill - p.pos }

// ResyncBytes returns the count of bytes discarded while hunting for the
// magic, including rejected oversized headers.
func (p *FrameParser) ResyncBytes() uint32 { return p.resyncBytes }

// OversizedCounts returns the number of headers rejected for an impossible
// event count.
func (p *FrameParser) OversizedCounts() uint32 { return p.oversizedCounts }

// BufferDiscards returns how many times the internal buffer overflowed and
// shed its oldest half.
func (p *FrameParser) BufferDiscards() uint32 { return p.bufferDiscards }

func (p *FrameParser) avail() []byte { return p.buf[p.pos:p.fill] }

func (p *FrameParser) consume(n int) {
	p.pos += n
}

// compact moves the unread tail to the front of the buffer.
func (p *FrameParser) compact() {
	if p.pos == 0 {
		return
	}
	copy(p.buf[:], p.buf[p.pos:p.fill])
	p.fill -= p.pos
	p.pos = 0
}

// Feed appends host bytes and runs the state machine as far as the data
// allows.
func (p *FrameParser) Feed(data []byte) {
	for len(data) > 0 {
		p.compact()
		if p.fill == len(p.buf) {
			// Saturated with nothing consumable: shed the oldest half and
			// drop the in-flight frame. Coarse, but the parser never
			// wedges behind a pathologically slow consumer.
			half := p.fill / 2
			copy(p.buf[:], p.buf[half:p.fill])
			p.fill -= half
			p.state = psScanMagic
			p.pendingEvents = 0
			p.bufferDiscards++
		}
		n := copy(p.buf[p.fill:], data)
		p.fill += n
		data = data[n:]
		p.process()
	}
}

func (p *FrameParser) process() {
	for {
		switch p.state {
		case psScanMagic:
			if !p.scanHeader() {
				return
			}
		case psReadEvents:
			if !p.readEvents() {
				return
			}
		case psReadCommand:
			if !p.readCommand() {
				return
			}
		}
	}
}

// scanHeader hunts for a plausible header at the buffer head, sliding one
// byte at a time past anything that does not start with the magic or that
// declares an impossible count.
func (p *FrameParser) scanHeader() bool {
	for {
		b := p.avail()
		if len(b) < 4 {
			return false
		}
		if binary.LittleEndian.Uint32(b) != FDIS_MAGIC {
			p.slideOne()
			continue
		}
		if len(b) < p.headerLen {
			return false
		}

		count := binary.LittleEndian.Uint16(b[4:6])
		if count != CMD_FRAME_COUNT && count > MAX_FRAME_EVENTS {
			p.oversizedCounts++
			p.slideOne()
			continue
		}

		var frame uint32
		if p.hdrProf == HEADER_PROFILE_12 {
			frame = binary.LittleEndian.Uint32(b[8:12])
		} else {
			frame = binary.LittleEndian.Uint32(b[6:10])
		}

		p.consume(p.headerLen)
		p.frameIndex = frame
		p.frameBytes = p.headerLen
		p.frameEvents = 0
		p.frameStart = time.Now()

		if count == CMD_FRAME_COUNT {
			p.state = psReadCommand
		} else if count == 0 {
			p.completeFrame()
			p.state = psScanMagic
		} else {
			p.pendingEvents = int(count)
			p.state = psReadEvents
		}
		return true
	}
}

func (p *FrameParser) slideOne() {
	p.consume(1)
	p.resyncBytes++

	now := time.Now()
	if p.resyncWindow.IsZero() || now.Sub(p.resyncWindow) > time.Second {
		p.resyncWindow = now
		p.resyncWindowCount = 0
	}
	p.resyncWindowCount++
	if p.resyncWindowCount >= resyncDiscardThreshold {
		p.pos = 0
		p.fill = 0
		p.bufferDiscards++
		p.resyncWindowCount = 0
	}
}

func (p *FrameParser) readEvents() bool {
	for p.pendingEvents > 0 {
		b := p.avail()
		if len(b) < p.recordLen {
			return false
		}
		var ev SIDEvent
		if p.recProf == RECORD_PROFILE_8 {
			ev.ChipMask = b[0]
			ev.Addr = b[1]
			ev.Value = b[2]
			ev.Delta = binary.LittleEndian.Uint32(b[4:8])
		} else {
			ev.Addr = b[0]
			ev.Value = b[1]
			ev.Delta = binary.LittleEndian.Uint32(b[2:6])
		}
		p.consume(p.recordLen)
		p.frameBytes += p.recordLen
		p.frameEvents++
		p.pendingEvents--
		p.events.PushEvent(ev)
	}
	p.completeFrame()
	p.state = psScanMagic
	return true
}

func (p *FrameParser) readCommand() bool {
	b := p.avail()
	if len(b) < commandRecordLen {
		return false
	}
	cmd := SIDCommand{
		Opcode: b[0],
		Param0: b[1],
		Param1: b[2],
		Param2: b[3],
	}
	p.consume(commandRecordLen)
	p.frameBytes += commandRecordLen
	p.commands.HandleCommand(cmd)
	p.completeFrame()
	p.state = psScanMagic
	return true
}

func (p *FrameParser) completeFrame() {
	if p.frames != nil {
		p.frames.FrameComplete(p.frameEvents, p.frameBytes,
			time.Since(p.frameStart), p.frameIndex)
	}
}
