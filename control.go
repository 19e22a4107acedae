// control.go - Out-of-band command application

package main

import "fmt"

// Control opcodes carried in command frames.
const (
	SID_CMD_CYCLE_MODE      = 0x01 // advance pair model through {6581, 8580, split}
	SID_CMD_SET_VOICE_MASK  = 0x02 // param0: bit i set mutes voice i
	SID_CMD_SET_FILTER      = 0x03 // param0: nonzero enables filter-register writes
	SID_CMD_SET_CLOCK_SCALE = 0x04 // param0|param1<<8: playback scale in ppm/100
	SID_CMD_SET_VIEW        = 0x05 // param0: debug view index
	SID_CMD_SET_PAUSE       = 0x06 // param0: nonzero pauses queue service
)

// ControlHandler applies command records to the engine's policy state and
// the device-level playback controls. Commands never enter the event queue;
// they take effect at the position they appear in the byte stream.
type ControlHandler struct {
	engine *SIDEngine
	device *Device
}

func NewControlHandler(engine *SIDEngine, device *Device) *ControlHandler {
	return &ControlHandler{engine: engine, device: device}
}

// HandleCommand dispatches one command record. Unknown opcodes are consumed
// silently; their four bytes have already been framed away.
func (c *ControlHandler) HandleCommand(cmd SIDCommand) {
	switch cmd.Opcode {
	case SID_CMD_CYCLE_MODE:
		mode := c.engine.CycleMode()
		fmt.Printf("[SID] mode %s\n", mode)
	case SID_CMD_SET_VOICE_MASK:
		c.engine.SetVoiceMuteMask(cmd.Param0)
		fmt.Printf("[SID] voice mask $%02X\n", cmd.Param0&0x7)
	case SID_CMD_SET_FILTER:
		c.engine.SetFilterWrites(cmd.Param0 != 0)
		fmt.Printf("[SID] filter writes %v\n", cmd.Param0 != 0)
	case SID_CMD_SET_CLOCK_SCALE:
		if c.device != nil {
			ppm := (uint32(cmd.Param0) | uint32(cmd.Param1)<<8) * 100
			c.device.SetClockScalePPM(ppm)
		}
	case SID_CMD_SET_VIEW:
		if c.device != nil {
			c.device.SetView(DebugView(cmd.Param0))
		}
	case SID_CMD_SET_PAUSE:
		if c.device != nil {
			c.device.SetPaused(cmd.Param0 != 0)
		}
	default:
		// Unknown opcode: four bytes consumed, nothing applied.
	}
}
