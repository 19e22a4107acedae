// sid_chip.go - Built-in SID cell: register file, clocking and mix-down

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

// SIDChip is the built-in SIDCell implementation: three voices with 24-bit
// phase accumulators, hardware-style ADSR rate counters and a state-variable
// filter with per-model cutoff and resonance curves. It is a compact model,
// not a cycle-exact reSID port; anything needing bit-exact output should
// plug a different SIDCell into the scheduler.
type SIDChip struct {
	regs   [SID_REG_COUNT]uint8
	voices [3]*sidVoice
	filter sidChipFilter

	model         ChipModel
	clockHz       float64
	sampleRateHz  float64
	filterEnabled bool
	extFiltOn     bool

	// extFiltState is the single-pole high-pass that strips the output DC,
	// standing in for the C64 board's output coupling network.
	extFiltState float32

	lastSample int32
}

// NewSIDChip returns a reset chip with the given model selected.
func NewSIDChip(model ChipModel) *SIDChip {
	chip := &SIDChip{
		model:         model,
		clockHz:       SID_CLOCK_PAL,
		sampleRateHz:  DEFAULT_SAMPLE_RATE,
		filterEnabled: true,
	}
	for i := range chip.voices {
		chip.voices[i] = newSIDVoice()
	}
	// Voice n hard-syncs and ring-modulates from voice n-1 (wrapping).
	chip.voices[0].modSource = chip.voices[2]
	chip.voices[1].modSource = chip.voices[0]
	chip.voices[2].modSource = chip.voices[1]
	chip.filter.setModel(model)
	return chip
}

func (chip *SIDChip) Write(addr uint8, value uint8) {
	addr &= SID_ADDR_MASK
	if addr >= 0x19 {
		// POT X/Y, OSC3, ENV3 are read-only; 0x1D-0x1F unmapped.
		return
	}
	chip.regs[addr] = value

	switch {
	case addr <= SID_V3_SR:
		voice := int(addr) / 7
		chip.voices[voice].writeRegister(addr%7, value)
	case addr == SID_FC_LO || addr == SID_FC_HI:
		cutoff := (uint16(chip.regs[SID_FC_HI]) << 3) | uint16(chip.regs[SID_FC_LO]&0x07)
		chip.filter.setCutoff(cutoff)
	case addr == SID_RES_FILT:
		chip.filter.setResFilt(value)
	case addr == SID_MODE_VOL:
		chip.filter.setModeVol(value)
	}
}

// Clock advances all voices by cycles SID clocks and runs one filter step
// over the batch. The scheduler calls this once per output sample, plus once
// for each event that falls due inside it, so batch-granularity filtering tracks the per-sample behavior closely.
func (chip *SIDChip) Clock(cycles uint32) {
	if cycles == 0 {
		return
	}
	for _, v := range chip.voices {
		v.clockOscillator(cycles)
	}
	// Hard sync is resolved after all accumulators moved, like the real
	// chip's combinational reset path.
	for _, v := range chip.voices {
		v.synchronize()
	}
	for _, v := range chip.voices {
		v.clearSyncFlag()
	}
	for _, v := range chip.voices {
		v.clockEnvelope(cycles)
	}

	chip.lastSample = chip.mix(cycles)
}

// mix combines the three voices through (or around) the filter and applies
// the master volume. Voice outputs are ~20-bit (12-bit wave x 8-bit
// envelope) as on the real chip; the result is scaled to 16-bit range.
func (chip *SIDChip) mix(cycles uint32) int32 {
	var direct, filtered float32
	routing := chip.regs[SID_RES_FILT]
	mode := chip.regs[SID_MODE_VOL]

	for i, v := range chip.voices {
		out := float32(v.output())
		routed := chip.filterEnabled && routing&(1<<uint(i)) != 0
		if i == 2 && mode&SID_MODE_3OFF != 0 && !routed {
			// 3OFF silences voice 3 only when it bypasses the filter.
			continue
		}
		if routed {
			filtered += out
		} else {
			direct += out
		}
	}

	if chip.filterEnabled {
		direct += chip.filter.clock(filtered, cycles, chip.clockHz)
	} else {
		direct += filtered
	}

	volume := float32(mode&SID_MODE_VOL_MASK) / 15.0
	// Three voices at 4095*255 max map onto the 16-bit range.
	sample := direct * volume * (32767.0 / (4095.0 * 255.0 * 3.0))

	if chip.extFiltOn {
		// One-pole high pass at ~16 Hz removes the waveform DC bias.
		chip.extFiltState += (sample - chip.extFiltState) * 0.0023
		sample -= chip.extFiltState
	}

	return int32(sample)
}

func (chip *SIDChip) Output() int32 {
	return chip.lastSample
}

func (chip *SIDChip) SetChipModel(model ChipModel) {
	chip.model = model
	chip.filter.setModel(model)
}

func (chip *SIDChip) Reset() {
	for i := range chip.regs {
		chip.regs[i] = 0
	}
	for _, v := range chip.voices {
		v.reset()
	}
	chip.filter.reset()
	chip.extFiltState = 0
	chip.lastSample = 0
}

func (chip *SIDChip) EnableFilter(enable bool) {
	chip.filterEnabled = enable
}

func (chip *SIDChip) EnableExternalFilter(enable bool) {
	chip.extFiltOn = enable
}

func (chip *SIDChip) SetSamplingParameters(clockHz float64, mode SamplingMode, sampleRateHz float64) {
	if clockHz > 0 {
		chip.clockHz = clockHz
	}
	if sampleRateHz > 0 {
		chip.sampleRateHz = sampleRateHz
	}
	_ = mode // the built-in cell decimates; no FIR table to rebuild
}

func (chip *SIDChip) ReadState() SIDCellState {
	var state SIDCellState
	state.SIDRegister = chip.regs
	for i, v := range chip.voices {
		state.EnvelopeCounter[i] = v.envelopeCounter
	}
	// Live voice 3 taps, as read through OSC3/ENV3 on hardware.
	state.SIDRegister[SID_OSC3] = uint8(chip.voices[2].waveOutput() >> 4)
	state.SIDRegister[SID_ENV3] = chip.voices[2].envelopeCounter
	return state
}
