// sid_chip_test.go - Behavioral tests for the built-in SID cell

package main

import "testing"

// programVoice sets up voice 0 with a sawtooth at roughly 440 Hz, volume
// max, and opens the gate.
func programVoice(chip *SIDChip) {
	chip.Write(SID_MODE_VOL, 0x0F)
	chip.Write(SID_V1_FREQ_LO, 0xD6)
	chip.Write(SID_V1_FREQ_HI, 0x1C)
	chip.Write(SID_V1_AD, 0x00)             // instant attack
	chip.Write(SID_V1_SR, 0xF0)             // full sustain
	chip.Write(SID_V1_CTRL, SID_CTRL_SAWTOOTH|SID_CTRL_GATE)
}

func TestSIDChip_SilentAtReset(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.Write(SID_MODE_VOL, 0x0F)
	chip.Clock(1000)
	if out := chip.Output(); out != 0 {
		t.Errorf("reset chip output = %d, want 0", out)
	}
}

func TestSIDChip_GateProducesSound(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	programVoice(chip)

	var nonZero bool
	var peak int32
	for i := 0; i < 2000; i++ {
		chip.Clock(22)
		out := chip.Output()
		if out != 0 {
			nonZero = true
		}
		if out > peak {
			peak = out
		}
	}
	if !nonZero {
		t.Fatal("gated sawtooth produced silence")
	}
	if peak < 1000 {
		t.Errorf("peak output %d suspiciously low", peak)
	}
}

func TestSIDChip_EnvelopeRises(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.Write(SID_V1_AD, 0x80) // slow-ish attack
	chip.Write(SID_V1_SR, 0xF0)
	chip.Write(SID_V1_CTRL, SID_CTRL_SAWTOOTH|SID_CTRL_GATE)

	chip.Clock(100)
	early := chip.ReadState().EnvelopeCounter[0]
	chip.Clock(200000)
	late := chip.ReadState().EnvelopeCounter[0]
	if late <= early {
		t.Errorf("envelope did not rise: %d -> %d", early, late)
	}
}

func TestSIDChip_GateOffReleases(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	programVoice(chip)
	chip.Write(SID_V1_SR, 0xF0) // full sustain, fast release

	chip.Clock(500000)
	held := chip.ReadState().EnvelopeCounter[0]
	if held == 0 {
		t.Fatal("envelope never opened")
	}

	chip.Write(SID_V1_CTRL, SID_CTRL_SAWTOOTH) // gate off
	chip.Clock(2000000)
	released := chip.ReadState().EnvelopeCounter[0]
	if released >= held {
		t.Errorf("envelope did not release: %d -> %d", held, released)
	}
}

func TestSIDChip_TestBitResetsOscillator(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	programVoice(chip)
	chip.Clock(10000)

	chip.Write(SID_V1_CTRL, SID_CTRL_TEST)
	if acc := chip.voices[0].accumulator; acc != 0 {
		t.Errorf("TEST bit left accumulator at %d", acc)
	}
	// Held TEST freezes the phase.
	chip.Clock(1000)
	if acc := chip.voices[0].accumulator; acc != 0 {
		t.Errorf("accumulator advanced under TEST: %d", acc)
	}
}

func TestSIDChip_WaveformSelection(t *testing.T) {
	waves := []struct {
		name string
		ctrl uint8
	}{
		{"triangle", SID_CTRL_TRIANGLE},
		{"sawtooth", SID_CTRL_SAWTOOTH},
		{"pulse", SID_CTRL_PULSE},
		{"noise", SID_CTRL_NOISE},
	}
	for _, w := range waves {
		chip := NewSIDChip(MOS8580)
		chip.Write(SID_MODE_VOL, 0x0F)
		chip.Write(SID_V1_FREQ_LO, 0x00)
		chip.Write(SID_V1_FREQ_HI, 0x20)
		chip.Write(SID_V1_PW_LO, 0x00)
		chip.Write(SID_V1_PW_HI, 0x08)
		chip.Write(SID_V1_AD, 0x00)
		chip.Write(SID_V1_SR, 0xF0)
		chip.Write(SID_V1_CTRL, w.ctrl|SID_CTRL_GATE)

		var changed bool
		var prev int32
		for i := 0; i < 5000; i++ {
			chip.Clock(22)
			out := chip.Output()
			if i > 0 && out != prev {
				changed = true
			}
			prev = out
		}
		if !changed {
			t.Errorf("%s waveform produced a flat line", w.name)
		}
	}
}

func TestSIDChip_RegisterFileReadback(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.Write(SID_V2_FREQ_LO, 0xAB)
	chip.Write(SID_FC_HI, 0x3C)
	state := chip.ReadState()
	if state.SIDRegister[SID_V2_FREQ_LO] != 0xAB {
		t.Errorf("register 0x07 = 0x%02X", state.SIDRegister[SID_V2_FREQ_LO])
	}
	if state.SIDRegister[SID_FC_HI] != 0x3C {
		t.Errorf("register 0x16 = 0x%02X", state.SIDRegister[SID_FC_HI])
	}
}

func TestSIDChip_ReadOnlyRegistersIgnoreWrites(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.Write(SID_POT_X, 0xFF)
	chip.Write(0x1D, 0xFF)
	state := chip.ReadState()
	if state.SIDRegister[0x1D] != 0 {
		t.Errorf("unmapped register accepted a write")
	}
}

func TestSIDChip_AddrWraps(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.Write(0x20|SID_V1_FREQ_LO, 0x99) // 5-bit wrap to register 0
	if chip.regs[SID_V1_FREQ_LO] != 0x99 {
		t.Errorf("address not masked to 5 bits")
	}
}

func TestSIDChip_ModelChangesFilterCurve(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	chip.filter.setCutoff(1024)
	hz6581 := chip.filter.cutoffHz()
	chip.SetChipModel(MOS8580)
	hz8580 := chip.filter.cutoffHz()
	if hz6581 == hz8580 {
		t.Errorf("model change did not alter the cutoff curve (%f)", hz6581)
	}
}

func TestSIDChip_FilterDisableBypasses(t *testing.T) {
	// With the filter cell disabled, routed voices mix dry instead of
	// disappearing into a zero-mode filter.
	chip := NewSIDChip(MOS6581)
	programVoice(chip)
	chip.Write(SID_RES_FILT, SID_FILT_V1) // route voice 1, mode bits clear
	chip.EnableFilter(false)

	var nonZero bool
	for i := 0; i < 5000; i++ {
		chip.Clock(22)
		if chip.Output() != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Errorf("disabled filter swallowed the routed voice")
	}
}

func TestSIDChip_ResetClearsState(t *testing.T) {
	chip := NewSIDChip(MOS6581)
	programVoice(chip)
	chip.Clock(100000)

	chip.Reset()
	state := chip.ReadState()
	for reg := 0; reg < 0x19; reg++ {
		if state.SIDRegister[reg] != 0 {
			t.Errorf("register 0x%02X = 0x%02X after reset", reg, state.SIDRegister[reg])
		}
	}
	if chip.Output() != 0 {
		t.Errorf("output nonzero after reset")
	}
}

func TestSIDChip_OutputWithinExpectedRange(t *testing.T) {
	// Three voices at full volume stay near the 16-bit range; the
	// scheduler clamps, but the cell should not blow far past it.
	chip := NewSIDChip(MOS8580)
	chip.Write(SID_MODE_VOL, 0x0F)
	for voice := 0; voice < 3; voice++ {
		base := uint8(voice * 7)
		chip.Write(base+0, 0xD6)
		chip.Write(base+1, 0x1C)
		chip.Write(base+5, 0x00)
		chip.Write(base+6, 0xF0)
		chip.Write(base+4, SID_CTRL_SAWTOOTH|SID_CTRL_GATE)
	}
	for i := 0; i < 20000; i++ {
		chip.Clock(22)
		out := chip.Output()
		if out > 40000 || out < -40000 {
			t.Fatalf("output %d far outside the nominal range", out)
		}
	}
}
