// device.go - The virtual Siddler device: session lifecycle and the event/audio loop

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"time"
)

// readyLine is the handshake emitted once per new host session. Hosts wait
// for it before streaming.
const readyLine = "[DUMP] READY\r\n"

// Bounded serial intake per loop iteration: at most 4 chunks of 512 bytes,
// so a fast host cannot starve rendering.
const (
	serialChunkSize = 512
	serialMaxChunks = 4
)

// StreamProfile selects the input framing.
type StreamProfile int

const (
	PROFILE_FDIS StreamProfile = iota // framed FDIS stream (default)
	PROFILE_RAW4                      // legacy unframed 4-byte events
)

// DebugView selects what the status surface shows.
type DebugView int

const (
	VIEW_STATUS DebugView = iota
	VIEW_USB_QUEUE
	VIEW_SID_QUEUE
	VIEW_HEX
	VIEW_COUNT
)

func (v DebugView) String() string {
	switch v {
	case VIEW_STATUS:
		return "STATUS"
	case VIEW_USB_QUEUE:
		return "USB QUEUE"
	case VIEW_SID_QUEUE:
		return "SID QUEUE"
	case VIEW_HEX:
		return "HEX DUMP"
	default:
		return "UNKNOWN"
	}
}

// DeviceConfig carries the init-time knobs.
type DeviceConfig struct {
	SampleRate    int
	BufferFrames  int
	BufferCount   int
	QueueCap      int
	ClockHz       float64
	Mode          SIDMode
	OutputGain    float64
	Profile       StreamProfile
	RecordProfile RecordProfile
	HeaderProfile HeaderProfile
}

// Device wires the whole pipeline together and runs the single-threaded
// event/audio loop: render audio first, service the host queue into the
// scheduler, maintain the session, then pull a bounded amount of host
// bytes. The render goroutine only ever touches the telemetry snapshot.
type Device struct {
	cfg       DeviceConfig
	engine    *SIDEngine
	hostQueue *EventQueue
	parser    *FrameParser
	raw       *rawLoader
	flow      *FlowController
	control   *ControlHandler
	telemetry *Telemetry
	pool      *BufferPool
	pump      *AudioPump
	transport Transport

	clockScalePPM uint32
	paused        bool
	readySent     bool
	streaming     bool
	view          DebugView

	// inject carries closures from auxiliary producers (the Lua runner)
	// onto the event/audio context, preserving its single-threaded
	// ownership of the engine and queues.
	inject chan func()

	nextStatus time.Time
}

// NewDevice assembles a device from the config. The transport is attached
// separately so tests can drive the loop with an in-memory pipe.
func NewDevice(cfg DeviceConfig) *Device {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DEFAULT_SAMPLE_RATE
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = DEFAULT_BUFFER_FRAMES
	}
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = 3
	}
	if cfg.QueueCap < HOST_QUEUE_CAP {
		cfg.QueueCap = HOST_QUEUE_CAP
	}
	if cfg.ClockHz <= 0 {
		cfg.ClockHz = SID_CLOCK_PAL
	}
	if cfg.OutputGain <= 0 {
		cfg.OutputGain = DEFAULT_OUTPUT_GAIN
	}

	d := &Device{
		cfg:           cfg,
		hostQueue:     NewEventQueue(cfg.QueueCap),
		telemetry:     NewTelemetry(),
		clockScalePPM: CLOCK_SCALE_BASE,
		inject:        make(chan func(), 256),
	}

	d.engine = NewSIDEngine(cfg.SampleRate)
	d.engine.SetClockHz(cfg.ClockHz)
	d.engine.SetOutputGain(float32(cfg.OutputGain))
	d.engine.Init(cfg.SampleRate)
	d.engine.SetMode(cfg.Mode)

	d.flow = NewFlowController(d.hostQueue)
	d.control = NewControlHandler(d.engine, d)
	d.parser = NewFrameParser(d, d.control, d.telemetry, cfg.RecordProfile, cfg.HeaderProfile)
	d.raw = newRawLoader(d)
	d.pool = NewBufferPool(cfg.BufferCount, cfg.BufferFrames)
	d.pump = NewAudioPump(d.engine, d.pool)
	d.pump.Prime()
	return d
}

func (d *Device) Engine() *SIDEngine       { return d.engine }
func (d *Device) Telemetry() *Telemetry    { return d.telemetry }
func (d *Device) Pool() *BufferPool        { return d.pool }
func (d *Device) Pump() *AudioPump         { return d.pump }
func (d *Device) HostQueue() *EventQueue   { return d.hostQueue }
func (d *Device) Flow() *FlowController    { return d.flow }
func (d *Device) Parser() *FrameParser     { return d.parser }
func (d *Device) Control() *ControlHandler { return d.control }

// AttachTransport sets the host connection.
func (d *Device) AttachTransport(t Transport) {
	d.transport = t
}

// Inject queues fn for execution on the event/audio context. Blocks only
// when the injection buffer is full.
func (d *Device) Inject(fn func()) {
	d.inject <- fn
}

// SetClockScalePPM sets the playback-rate scale, clamped to 0.20x-3.00x.
func (d *Device) SetClockScalePPM(ppm uint32) {
	if ppm < CLOCK_SCALE_MIN {
		ppm = CLOCK_SCALE_MIN
	}
	if ppm > CLOCK_SCALE_MAX {
		ppm = CLOCK_SCALE_MAX
	}
	if ppm == d.clockScalePPM {
		return
	}
	d.clockScalePPM = ppm
	fmt.Printf("[DUMP] clock %3d.%02d%% (%d Hz)\n",
		ppm/10000, (ppm/100)%100, d.effectiveClockHz())
}

func (d *Device) ClockScalePPM() uint32 { return d.clockScalePPM }

func (d *Device) effectiveClockHz() uint64 {
	return (uint64(d.cfg.ClockHz)*uint64(d.clockScalePPM) + CLOCK_SCALE_BASE/2) /
		CLOCK_SCALE_BASE
}

// scaleDelta applies the clock scale to an event delta. Nonzero deltas
// never scale to zero, so event ordering survives extreme slowdowns.
func (d *Device) scaleDelta(delta uint32) uint32 {
	if delta == 0 || d.clockScalePPM == CLOCK_SCALE_BASE {
		return delta
	}
	scaled := (uint64(delta)*uint64(d.clockScalePPM) + CLOCK_SCALE_BASE/2) /
		CLOCK_SCALE_BASE
	if scaled == 0 {
		scaled = 1
	}
	if scaled > 0xFFFFFFFF {
		scaled = 0xFFFFFFFF
	}
	return uint32(scaled)
}

// SetPaused suspends queue service; rendering continues from the cells'
// current state.
func (d *Device) SetPaused(paused bool) {
	if paused == d.paused {
		return
	}
	d.paused = paused
	if paused {
		fmt.Printf("[DUMP] paused\n")
	} else {
		fmt.Printf("[DUMP] playing\n")
	}
}

func (d *Device) Paused() bool { return d.paused }

// SetView switches the status surface.
func (d *Device) SetView(view DebugView) {
	if view < 0 || view >= VIEW_COUNT {
		view = VIEW_STATUS
	}
	if d.view == view {
		return
	}
	d.view = view
	fmt.Printf("[DUMP] view -> %s\n", view)
}

func (d *Device) View() DebugView { return d.view }

// PushEvent implements EventSink for the parser: account the event, push it
// into the host queue and re-evaluate flow control.
func (d *Device) PushEvent(ev SIDEvent) {
	d.telemetry.RecordEvent(ev)
	d.hostQueue.Push(ev)
	d.streaming = true
	d.flow.Consider()
}

// Tick runs one iteration of the cooperative loop. Callers drive it as fast
// as they like; every stage is bounded and non-blocking.
func (d *Device) Tick() {
	// 0) Apply injected work from auxiliary producers.
	for drained := false; !drained; {
		select {
		case fn := <-d.inject:
			fn()
		default:
			drained = true
		}
	}

	// 1) Audio first: the scheduler gets priority over everything.
	d.pump.Service()

	// 2) Feed the scheduler from the host event queue.
	d.serviceQueue()

	// 3) Session maintenance.
	d.maintainSession()

	// 4) Pull a bounded slice of host bytes.
	d.processSerial()

	// 5) Refresh the status surface at 10 Hz.
	now := time.Now()
	if now.After(d.nextStatus) {
		d.updateStatusScreen()
		d.nextStatus = now.Add(100 * time.Millisecond)
	}
}

// Run drives Tick until stop is closed.
func (d *Device) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		d.Tick()
		// The loop is poll-based; a short sleep keeps an idle device from
		// spinning a core flat out.
		if d.hostQueue.Empty() && d.parser.Buffered() == 0 {
			time.Sleep(500 * time.Microsecond)
		}
	}
}

// serviceQueue moves events from the host queue into the scheduler, scaling
// deltas and translating delay pseudo-events, until the scheduler's pending
// ring is comfortably full.
func (d *Device) serviceQueue() {
	if d.paused {
		return
	}
	for !d.hostQueue.Empty() {
		if d.engine.GetQueueDepth() > ENGINE_QUEUE_HIWATER {
			break
		}
		ev, ok := d.hostQueue.Pop()
		if !ok {
			break
		}
		scaled := d.scaleDelta(ev.Delta)
		if ev.Addr == SID_DELAY_ADDR {
			// Pure time advance: keep the delta, drop the write.
			d.engine.QueueEvent(ev.ChipMask, SID_DELAY_ADDR, 0, scaled)
		} else {
			d.engine.QueueEvent(ev.ChipMask, ev.Addr&SID_ADDR_MASK, ev.Value, scaled)
		}
		d.flow.Consider()
	}
}

// maintainSession tracks host attach/detach. Detach clears the parser and
// the host queue but keeps SID cell state; a new session resets everything
// and emits READY exactly once.
func (d *Device) maintainSession() {
	if d.transport == nil {
		return
	}
	if !d.transport.Connected() {
		d.readySent = false
		if d.streaming || d.parser.Buffered() > 0 || !d.hostQueue.Empty() {
			d.resetSession(false)
		}
		return
	}
	if !d.readySent {
		d.resetSession(true)
		d.sendReady()
	}
}

// resetSession clears stream state. When resetAudio is set (new session)
// the engine is reinitialized too; on detach the cells keep playing state
// until the next handshake.
func (d *Device) resetSession(resetAudio bool) {
	d.parser.Reset()
	d.raw.reset()
	d.hostQueue.Reset()
	d.flow.Release()
	d.streaming = false
	if resetAudio {
		d.engine.ResetQueueState()
		d.engine.Init(d.cfg.SampleRate)
		d.telemetry.ResetSession()
	}
}

func (d *Device) sendReady() {
	if d.readySent {
		return
	}
	d.transport.Write([]byte(readyLine))
	fmt.Printf("[DUMP] READY\n")
	d.readySent = true
}

// processSerial pulls at most serialMaxChunks reads from the transport,
// yielding immediately when flow control has the host halted.
func (d *Device) processSerial() {
	if d.transport == nil || d.flow.Paused() {
		return
	}
	var buf [serialChunkSize]byte
	for chunks := 0; chunks < serialMaxChunks && !d.flow.Paused(); chunks++ {
		n, err := d.transport.Read(buf[:])
		if n > 0 {
			d.telemetry.AddBytes(buf[:n])
			if d.cfg.Profile == PROFILE_RAW4 {
				d.raw.feed(buf[:n])
			} else {
				d.parser.Feed(buf[:n])
			}
		}
		if n == 0 || err != nil {
			break
		}
	}
}

// rawLoader consumes the legacy unframed stream: 4-byte records of
// delta:u16 LE, addr, value. It predates FDIS framing and survives for the
// original capture files.
type rawLoader struct {
	device *Device
	buf    [4]byte
	have   int
}

func newRawLoader(device *Device) *rawLoader {
	return &rawLoader{device: device}
}

func (l *rawLoader) reset() {
	l.have = 0
}

func (l *rawLoader) feed(data []byte) {
	for len(data) > 0 {
		take := len(l.buf) - l.have
		if take > len(data) {
			take = len(data)
		}
		copy(l.buf[l.have:], data[:take])
		l.have += take
		data = data[take:]
		if l.have == len(l.buf) {
			delta := uint32(l.buf[0]) | uint32(l.buf[1])<<8
			l.device.PushEvent(SIDEvent{
				Addr:  l.buf[2],
				Value: l.buf[3],
				Delta: delta,
			})
			l.have = 0
		}
	}
}
