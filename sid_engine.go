// sid_engine.go - Cycle-accurate scheduler driving the emulated SID pair

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

// SIDMode selects how the two cells are modelled as a pair.
type SIDMode int

const (
	SID_MODE_6581  SIDMode = iota // both cells 6581
	SID_MODE_8580                 // both cells 8580
	SID_MODE_SPLIT                // left 6581, right 8580
	SID_MODE_COUNT
)

func (m SIDMode) String() string {
	switch m {
	case SID_MODE_6581:
		return "6581"
	case SID_MODE_8580:
		return "8580"
	case SID_MODE_SPLIT:
		return "6581+8580"
	default:
		return "?"
	}
}

// SIDEngineMonitor is the live voice/filter snapshot shown by the status
// view, read from the left cell.
type SIDEngineMonitor struct {
	VoiceFreq       [3]uint16
	VoiceControl    [3]uint8
	VoiceEnvelope   [3]uint8
	FilterCutoff    uint16
	FilterResonance uint8
	FilterMode      uint8
}

// Default voice programming applied on engine init: sawtooth, gate off,
// short attack/decay, full sustain, 50% pulse width.
const (
	sidDefaultAttackDecay = 0x11
	sidDefaultReleaseRate = 0x04
	sidDefaultSustain     = 0x0F
	sidWaveformSaw        = SID_CTRL_SAWTOOTH
)

// SIDEngine owns two SID cells and a time-ordered pending-event queue, and
// reconciles the SID clock domain against the audio sample rate: each
// RenderSample call converts one sample period into whole SID cycles
// (carrying the fractional remainder in cycleResidual), delivers every
// pending event at the exact cycle it becomes due, and mixes one stereo
// PCM frame from the cells' outputs.
//
// The engine is exclusively owned by the event/audio context. Nothing here
// locks; cross-context visibility is the telemetry layer's problem.
type SIDEngine struct {
	cells  [2]SIDCell
	models [2]ChipModel
	mode   SIDMode

	queue *EventQueue

	sampleRateHz    uint32
	clockHz         float64
	cyclesPerSample float64
	cycleResidual   float64
	outputGain      float32

	// Control policy (applied by the control handler)
	voiceMuteMask uint8
	filterWrites  bool

	// MIDI-style voice allocation (sid_notes.go)
	voices          [3]voiceSlot
	voiceGeneration uint32
}

// NewSIDEngine builds an engine around two built-in SIDChip cells.
func NewSIDEngine(sampleRateHz int) *SIDEngine {
	return NewSIDEngineWithCells(
		NewSIDChip(MOS6581), NewSIDChip(MOS6581), sampleRateHz)
}

// NewSIDEngineWithCells builds an engine around caller-supplied cells.
// Tests pass cycle-counting mocks here.
func NewSIDEngineWithCells(left, right SIDCell, sampleRateHz int) *SIDEngine {
	e := &SIDEngine{
		cells:        [2]SIDCell{left, right},
		models:       [2]ChipModel{MOS6581, MOS6581},
		mode:         SID_MODE_6581,
		queue:        NewEventQueue(ENGINE_QUEUE_CAP),
		clockHz:      SID_CLOCK_PAL,
		outputGain:   DEFAULT_OUTPUT_GAIN,
		filterWrites: true,
	}
	e.Init(sampleRateHz)
	return e
}

// Init (re)initializes both cells with the current per-channel models and
// writes the default register state: filter off, volume max, voices
// programmed but gated off. The pending queue is NOT touched; connection
// resets clear it separately via ResetQueueState.
func (e *SIDEngine) Init(sampleRateHz int) {
	if sampleRateHz <= 0 {
		sampleRateHz = DEFAULT_SAMPLE_RATE
	}
	e.sampleRateHz = uint32(sampleRateHz)
	e.cyclesPerSample = e.clockHz / float64(sampleRateHz)
	e.cycleResidual = 0

	for ch, cell := range e.cells {
		cell.SetChipModel(e.models[ch])
		cell.Reset()
		cell.EnableFilter(false)
		cell.EnableExternalFilter(false)
		cell.SetSamplingParameters(e.clockHz, SAMPLE_INTERPOLATE, float64(sampleRateHz))

		for voice := 0; voice < 3; voice++ {
			base := uint8(voice * 7)
			cell.Write(base+0, 0)              // frequency low
			cell.Write(base+1, 0)              // frequency high
			cell.Write(base+2, 0)              // pulse width low
			cell.Write(base+3, 0x08)           // pulse width high (50%)
			cell.Write(base+4, sidWaveformSaw) // waveform, gate off
			cell.Write(base+5, sidDefaultAttackDecay)
			cell.Write(base+6, (sidDefaultSustain<<4)|sidDefaultReleaseRate)
		}

		cell.Write(SID_FC_LO, 0x00)
		cell.Write(SID_FC_HI, 0x00)
		cell.Write(SID_RES_FILT, 0x00)
		cell.Write(SID_MODE_VOL, 0x0F) // volume max, no filter
	}

	for i := range e.voices {
		e.voices[i] = voiceSlot{}
	}
}

// SetClockHz changes the emulated SID clock. Takes effect on the next Init.
func (e *SIDEngine) SetClockHz(clockHz float64) {
	if clockHz <= 0 {
		return
	}
	e.clockHz = clockHz
}

func (e *SIDEngine) SampleRate() int { return int(e.sampleRateHz) }

// SetOutputGain sets the post-mix gain applied before the 16-bit clamp.
func (e *SIDEngine) SetOutputGain(gain float32) {
	if gain > 0 {
		e.outputGain = gain
	}
}

// QueueEvent appends a pending event. When the ring is full the oldest
// event is dropped and its delta folded into the next one, preserving the
// queue's total elapsed cycles; the drop is counted.
func (e *SIDEngine) QueueEvent(chipMask, addr, value uint8, deltaCycles uint32) {
	e.queue.Push(SIDEvent{ChipMask: chipMask, Addr: addr, Value: value, Delta: deltaCycles})
}

// RenderSample produces one stereo PCM frame at the configured sample rate,
// advancing both cells by this sample's worth of SID cycles and applying
// every event that falls due inside the window.
func (e *SIDEngine) RenderSample(left, right *int16) {
	e.cycleResidual += e.cyclesPerSample
	cycles := uint32(e.cycleResidual)
	e.cycleResidual -= float64(cycles)
	if cycles < 1 {
		// Sample rate above the SID clock: force one cycle per sample so
		// time always moves forward.
		cycles = 1
		e.cycleResidual = 0
	}

	e.drainZeroDeltaEvents()

	for cycles > 0 {
		run := cycles
		if next := e.queue.CyclesToNext(); next != cyclesInfinite && next < run {
			run = next
		}

		for _, cell := range e.cells {
			cell.Clock(run)
		}
		cycles -= run

		if e.queue.CyclesToNext() != cyclesInfinite {
			e.queue.ConsumeCycles(run)
			if e.queue.CyclesToNext() == 0 {
				if ev, ok := e.queue.Pop(); ok {
					e.applyEvent(ev)
				}
				e.drainZeroDeltaEvents()
			}
		}
	}

	l := int32(float32(e.cells[0].Output()) * e.outputGain)
	r := int32(float32(e.cells[1].Output()) * e.outputGain)
	*left = clamp16(l)
	*right = clamp16(r)
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// drainZeroDeltaEvents applies head events whose delta is zero, in
// insertion order, without any intervening clocking.
func (e *SIDEngine) drainZeroDeltaEvents() {
	for {
		head, ok := e.queue.Peek()
		if !ok || head.Delta != 0 {
			return
		}
		ev, _ := e.queue.Pop()
		e.applyEvent(ev)
	}
}

// applyEvent delivers a register write to the cells selected by the chip
// mask, honoring the voice-mute and filter-write policies. Mask bits above
// bit 1 are ignored; an all-zero mask broadcasts.
func (e *SIDEngine) applyEvent(ev SIDEvent) {
	if ev.Addr == SID_DELAY_ADDR {
		// Delay pseudo-event: its delta has elapsed, nothing to write.
		return
	}
	addr := ev.Addr & SID_ADDR_MASK
	if !e.writeAllowed(addr) {
		return
	}
	mask := ev.ChipMask & 0x3
	if mask == 0 {
		mask = 0x3
	}
	if mask&0x1 != 0 {
		e.cells[0].Write(addr, ev.Value)
	}
	if mask&0x2 != 0 {
		e.cells[1].Write(addr, ev.Value)
	}
}

// writeAllowed enforces the control policies: muted voices swallow writes
// to their seven registers, and disabling the filter swallows writes to
// $15-$18 so stale cutoff state cannot color the mix.
func (e *SIDEngine) writeAllowed(addr uint8) bool {
	if addr <= SID_V3_SR {
		voice := addr / 7
		return e.voiceMuteMask&(1<<voice) == 0
	}
	if addr >= SID_FC_LO && addr <= SID_MODE_VOL {
		return e.filterWrites
	}
	return true
}

// SetVoiceMuteMask mutes voices whose bit is set. Newly muted voices get
// their gate dropped on both cells so held notes release.
func (e *SIDEngine) SetVoiceMuteMask(mask uint8) {
	newly := mask &^ e.voiceMuteMask
	e.voiceMuteMask = mask & 0x7
	for voice := uint8(0); voice < 3; voice++ {
		if newly&(1<<voice) != 0 {
			base := voice * 7
			for _, cell := range e.cells {
				cell.Write(base+4, sidWaveformSaw) // waveform kept, gate off
			}
		}
	}
}

func (e *SIDEngine) VoiceMuteMask() uint8 { return e.voiceMuteMask }

// SetFilterWrites enables or disables filter-register writes being applied.
func (e *SIDEngine) SetFilterWrites(enable bool) {
	e.filterWrites = enable
}

func (e *SIDEngine) FilterWrites() bool { return e.filterWrites }

// Mode returns the current pair model mode.
func (e *SIDEngine) Mode() SIDMode { return e.mode }

// CycleMode advances the pair model through {6581, 8580, split} and
// reinitializes both cells. The pending queue is preserved.
func (e *SIDEngine) CycleMode() SIDMode {
	e.SetMode((e.mode + 1) % SID_MODE_COUNT)
	return e.mode
}

// SetMode applies a pair model mode, reinitializing the cells only when the
// per-channel models actually change.
func (e *SIDEngine) SetMode(mode SIDMode) {
	if mode < 0 || mode >= SID_MODE_COUNT {
		return
	}
	e.mode = mode
	left := MOS6581
	if mode == SID_MODE_8580 {
		left = MOS8580
	}
	right := left
	if mode == SID_MODE_SPLIT {
		right = MOS8580
	}
	if left == e.models[0] && right == e.models[1] {
		return
	}
	e.models[0] = left
	e.models[1] = right
	e.Init(int(e.sampleRateHz))
}

// ChannelModels returns the per-cell chip models.
func (e *SIDEngine) ChannelModels() (ChipModel, ChipModel) {
	return e.models[0], e.models[1]
}

// ResetQueueState clears the pending queue, the drop counter and the cycle
// residual. Cell state is untouched.
func (e *SIDEngine) ResetQueueState() {
	e.queue.Reset()
	e.cycleResidual = 0
}

func (e *SIDEngine) GetQueueDepth() uint32        { return e.queue.Depth() }
func (e *SIDEngine) GetDroppedEventCount() uint32 { return e.queue.Dropped() }
func (e *SIDEngine) QueueCyclesToNext() uint32    { return e.queue.CyclesToNext() }

// PeekQueue copies up to len(out) pending events head-first and returns the
// count plus the cycles until the head fires.
func (e *SIDEngine) PeekQueue(out []SIDEvent) (int, uint32) {
	return e.queue.Snapshot(out), e.queue.CyclesToNext()
}

// GetMonitor snapshots the left cell's voice and filter state.
func (e *SIDEngine) GetMonitor() SIDEngineMonitor {
	var mon SIDEngineMonitor
	state := e.cells[0].ReadState()
	for voice := 0; voice < 3; voice++ {
		base := voice * 7
		mon.VoiceFreq[voice] = uint16(state.SIDRegister[base+1])<<8 |
			uint16(state.SIDRegister[base+0])
		mon.VoiceControl[voice] = state.SIDRegister[base+4]
		mon.VoiceEnvelope[voice] = state.EnvelopeCounter[voice]
	}
	mon.FilterCutoff = uint16(state.SIDRegister[SID_FC_HI]&0x7F)<<3 |
		uint16(state.SIDRegister[SID_FC_LO]&0x07)
	mon.FilterResonance = (state.SIDRegister[SID_RES_FILT] >> 4) & 0x0F
	mon.FilterMode = state.SIDRegister[SID_RES_FILT] & 0x0F
	return mon
}
