// sid_cell.go - Contract between the scheduler and a SID chip emulation

package main

// ChipModel selects between the two SID revisions.
type ChipModel int

const (
	MOS6581 ChipModel = iota // Original SID (non-linear filter, warmer sound)
	MOS8580                  // Revised SID (linear filter, cleaner sound)
)

func (m ChipModel) String() string {
	switch m {
	case MOS6581:
		return "6581"
	case MOS8580:
		return "8580"
	default:
		return "?"
	}
}

// SamplingMode is accepted by SetSamplingParameters for compatibility with
// resampling cells. The built-in cell clocks at the SID rate and decimates,
// so the mode only matters to cells that implement FIR resampling.
type SamplingMode int

const (
	SAMPLE_FAST SamplingMode = iota
	SAMPLE_INTERPOLATE
)

// SIDCellState is the register/envelope snapshot returned by ReadState,
// consumed by the monitor view.
type SIDCellState struct {
	SIDRegister     [SID_REG_COUNT]uint8
	EnvelopeCounter [3]uint8
}

// SIDCell is one emulated SID chip as seen by the scheduler. All methods are
// synchronous and single-threaded; the scheduler owns the cell exclusively.
// Any cycle-accurate SID emulation satisfying these signatures can be
// dropped in; tests use a cycle-counting mock.
type SIDCell interface {
	// Write commits a register write. addr is a 5-bit register index.
	Write(addr uint8, value uint8)

	// Clock advances the chip by exactly cycles SID clocks.
	Clock(cycles uint32)

	// Output returns the current audio sample. Nominally within the signed
	// 16-bit range but may exceed it; the caller clamps.
	Output() int32

	SetChipModel(model ChipModel)
	Reset()
	EnableFilter(enable bool)
	EnableExternalFilter(enable bool)
	SetSamplingParameters(clockHz float64, mode SamplingMode, sampleRateHz float64)

	// ReadState snapshots registers and envelope counters for telemetry.
	ReadState() SIDCellState
}
