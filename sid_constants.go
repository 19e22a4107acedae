// sid_constants.go - MOS 6581/8580 SID register layout, timing tables and pipeline limits

package main

import "math"

// SID register indices. The SID exposes 29 registers through a 5-bit address
// bus; indices 29-31 mirror nothing and writes there are ignored by the chip.
const (
	// Voice 1 registers (0x00-0x06)
	SID_V1_FREQ_LO = 0x00 // Voice 1 frequency low byte
	SID_V1_FREQ_HI = 0x01 // Voice 1 frequency high byte
	SID_V1_PW_LO   = 0x02 // Voice 1 pulse width low byte
	SID_V1_PW_HI   = 0x03 // Voice 1 pulse width high byte (bits 0-3 only)
	SID_V1_CTRL    = 0x04 // Voice 1 control register
	SID_V1_AD      = 0x05 // Voice 1 attack/decay
	SID_V1_SR      = 0x06 // Voice 1 sustain/release

	// Voice 2 registers (0x07-0x0D)
	SID_V2_FREQ_LO = 0x07
	SID_V2_FREQ_HI = 0x08
	SID_V2_PW_LO   = 0x09
	SID_V2_PW_HI   = 0x0A
	SID_V2_CTRL    = 0x0B
	SID_V2_AD      = 0x0C
	SID_V2_SR      = 0x0D

	// Voice 3 registers (0x0E-0x14)
	SID_V3_FREQ_LO = 0x0E
	SID_V3_FREQ_HI = 0x0F
	SID_V3_PW_LO   = 0x10
	SID_V3_PW_HI   = 0x11
	SID_V3_CTRL    = 0x12
	SID_V3_AD      = 0x13
	SID_V3_SR      = 0x14

	// Filter registers (0x15-0x17)
	SID_FC_LO    = 0x15 // Filter cutoff low (bits 0-2 only)
	SID_FC_HI    = 0x16 // Filter cutoff high byte
	SID_RES_FILT = 0x17 // Filter resonance (bits 4-7) and routing (bits 0-3)

	// Volume and filter mode (0x18)
	SID_MODE_VOL = 0x18 // Volume (bits 0-3), filter mode (bits 4-6), voice 3 off (bit 7)

	// Read-only registers
	SID_POT_X = 0x19 // Potentiometer X (not implemented)
	SID_POT_Y = 0x1A // Potentiometer Y (not implemented)
	SID_OSC3  = 0x1B // Oscillator 3 output
	SID_ENV3  = 0x1C // Envelope 3 output

	SID_REG_COUNT = 32   // 5-bit address space, registers 29-31 unused
	SID_ADDR_MASK = 0x1F // Register addresses are 5 bits on the wire
)

// SID clock frequencies
const (
	SID_CLOCK_PAL  = 985248  // PAL C64 clock (Hz)
	SID_CLOCK_NTSC = 1022727 // NTSC C64 clock (Hz)
)

// PAL video frame timing; cmd/sidstream's pacer keeps its own copy of the
// frame length
const (
	PAL_CYCLES_PER_FRAME = 19656
	PAL_FRAME_TOLERANCE  = 512
)

// Voice control register bits
const (
	SID_CTRL_GATE     = 0x01 // Bit 0: Gate (trigger envelope)
	SID_CTRL_SYNC     = 0x02 // Bit 1: Sync with previous voice
	SID_CTRL_RINGMOD  = 0x04 // Bit 2: Ring modulation with previous voice
	SID_CTRL_TEST     = 0x08 // Bit 3: Test bit (resets oscillator)
	SID_CTRL_TRIANGLE = 0x10 // Bit 4: Triangle waveform
	SID_CTRL_SAWTOOTH = 0x20 // Bit 5: Sawtooth waveform
	SID_CTRL_PULSE    = 0x40 // Bit 6: Pulse/square waveform
	SID_CTRL_NOISE    = 0x80 // Bit 7: Noise waveform
)

// Filter resonance/routing register bits
const (
	SID_FILT_V1  = 0x01 // Bit 0: Route voice 1 through filter
	SID_FILT_V2  = 0x02 // Bit 1: Route voice 2 through filter
	SID_FILT_V3  = 0x04 // Bit 2: Route voice 3 through filter
	SID_FILT_EXT = 0x08 // Bit 3: Route external input through filter
	SID_FILT_RES = 0xF0 // Bits 4-7: Filter resonance (0-15)
)

// Mode/volume register bits
const (
	SID_MODE_VOL_MASK = 0x0F // Bits 0-3: Master volume (0-15)
	SID_MODE_LP       = 0x10 // Bit 4: Low-pass filter
	SID_MODE_BP       = 0x20 // Bit 5: Band-pass filter
	SID_MODE_HP       = 0x40 // Bit 6: High-pass filter
	SID_MODE_3OFF     = 0x80 // Bit 7: Voice 3 off (disconnect from output)
)

// Pipeline limits and defaults
const (
	DEFAULT_SAMPLE_RATE   = 44100
	DEFAULT_BUFFER_FRAMES = 256 // stereo frames per audio buffer
	DEFAULT_OUTPUT_GAIN   = 1.5

	HOST_QUEUE_CAP       = 4096 // C4 ring between parser and scheduler
	ENGINE_QUEUE_CAP     = 8192 // pending-event ring inside the scheduler
	ENGINE_QUEUE_HIWATER = 6000 // stop servicing C4 above this engine depth

	FLOW_LOW_WATER = 256 // resume host reads at or below this C4 depth
	// High water is capacity-relative: see NewFlowController.
	FLOW_HIGH_WATER_MARGIN = 128

	PARSER_BUFFER_SIZE = 4096 // internal reassembly buffer in the frame parser
	RECENT_BUF_SIZE    = 512  // debug capture of the last host bytes

	MAX_FRAME_EVENTS = 8192 // header count above this (except 0xFFFF) is noise
)

// Clock scaling bounds, in parts-per-million of real time
const (
	CLOCK_SCALE_BASE = 1000000
	CLOCK_SCALE_MIN  = 200000  // 0.20x
	CLOCK_SCALE_MAX  = 3000000 // 3.00x
)

// SID_DELAY_ADDR marks a pure time-advance event: the delta elapses but no
// register write is performed. Producers use it to keep long silences from
// overflowing the 32-bit delta of the following real write.
const SID_DELAY_ADDR = 0xFF

// SID ADSR rate counter periods (clock cycles at 985248 Hz PAL).
// Index is the 4-bit attack/decay/release register value.
var sidADSRRatePeriods = [16]uint32{
	9, 32, 63, 95, 149, 220, 267, 313,
	392, 977, 1954, 3126, 3907, 11720, 19532, 31251,
}

// SID envelope exponential decay thresholds. When the envelope counter
// crosses these levels the decay rate divides further, producing the
// characteristic "bent" SID release curve.
var sidEnvExpThresholds = [6]uint8{93, 54, 26, 14, 6, 0}

// Rate divider applied at each threshold.
var sidEnvExpMultipliers = [6]uint8{2, 4, 8, 16, 30, 30}

// SID resonance lookup tables (normalized Q values for the state-variable
// filter). Index 0-15 corresponds to the 4-bit resonance register value.

// sid6581ResonanceTable provides non-linear resonance for the 6581 chip.
// The 6581 has a "wilder" resonance response with earlier self-oscillation.
var sid6581ResonanceTable = [16]float32{
	0.50, 0.55, 0.62, 0.72, 0.85, 1.00, 1.20, 1.50,
	1.90, 2.40, 3.00, 3.80, 4.80, 6.00, 8.00, 12.0,
}

// sid8580ResonanceTable provides more linear resonance for the 8580 chip.
var sid8580ResonanceTable = [16]float32{
	0.50, 0.60, 0.70, 0.82, 0.95, 1.10, 1.30, 1.50,
	1.75, 2.00, 2.30, 2.65, 3.00, 3.50, 4.20, 5.00,
}

// Filter cutoff curves. The 11-bit cutoff register maps to Hz differently on
// the two models: the 6581 follows a non-linear power curve, the 8580 is
// close to linear.
const (
	sidFilterCutoffTableSize = 2048
	sidFilterMaxCutoff6581   = 12000.0
	sidFilterMaxCutoff8580   = 18000.0
	sidFilterMinCutoff       = 30.0
)

// sidFilterCutoff6581Table / sidFilterCutoff8580Table give the cutoff in Hz
// for each 11-bit register value.
var sidFilterCutoff6581Table [sidFilterCutoffTableSize]float32
var sidFilterCutoff8580Table [sidFilterCutoffTableSize]float32

func init() {
	for i := 0; i < sidFilterCutoffTableSize; i++ {
		hz := sidFilterMinCutoff
		if i > 0 {
			// 6581: Fc = 30 + cutoff^1.35 * 0.22
			hz = sidFilterMinCutoff + math.Pow(float64(i), 1.35)*0.22
		}
		if hz > sidFilterMaxCutoff6581 {
			hz = sidFilterMaxCutoff6581
		}
		sidFilterCutoff6581Table[i] = float32(hz)
	}

	for i := 0; i < sidFilterCutoffTableSize; i++ {
		hz := sidFilterMinCutoff
		if i > 0 {
			// 8580: Fc = 30 + cutoff * 5.8
			hz = sidFilterMinCutoff + float64(i)*5.8
		}
		if hz > sidFilterMaxCutoff8580 {
			hz = sidFilterMaxCutoff8580
		}
		sidFilterCutoff8580Table[i] = float32(hz)
	}
}
