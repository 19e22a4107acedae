// script.go - Lua automation hooks for hostless operation

package main

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ScriptRunner executes a Lua automation script against the device: a
// test-signal generator for bench runs without a streaming host. The script
// sees the same surfaces a host does - timed register events and control
// commands - so a bench script and a live stream exercise identical paths.
//
// Exposed functions:
//
//	queue_event(mask, addr, value, delta)  -- schedule a register write
//	command(opcode, p0, p1, p2)            -- apply a control command
//	note_on(note, velocity)                -- MIDI-style note entry
//	note_off(note)
//	wait_frames(n)                         -- let n PAL frames of audio play
type ScriptRunner struct {
	device *Device
	path   string
}

func NewScriptRunner(device *Device, path string) *ScriptRunner {
	return &ScriptRunner{device: device, path: path}
}

// Run executes the script to completion, usually on its own goroutine.
// Every exposed function is marshalled onto the device's event/audio
// context through Inject, so the engine and queues keep their
// single-threaded ownership.
func (r *ScriptRunner) Run() error {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("queue_event", L.NewFunction(r.luaQueueEvent))
	L.SetGlobal("command", L.NewFunction(r.luaCommand))
	L.SetGlobal("note_on", L.NewFunction(r.luaNoteOn))
	L.SetGlobal("note_off", L.NewFunction(r.luaNoteOff))
	L.SetGlobal("wait_frames", L.NewFunction(r.luaWaitFrames))

	if err := L.DoFile(r.path); err != nil {
		return fmt.Errorf("script %s: %w", r.path, err)
	}
	return nil
}

func (r *ScriptRunner) luaQueueEvent(L *lua.LState) int {
	mask := uint8(L.CheckInt(1))
	addr := uint8(L.CheckInt(2))
	value := uint8(L.CheckInt(3))
	delta := uint32(L.CheckInt64(4))
	r.device.Inject(func() {
		r.device.PushEvent(SIDEvent{ChipMask: mask, Addr: addr, Value: value, Delta: delta})
	})
	return 0
}

func (r *ScriptRunner) luaCommand(L *lua.LState) int {
	cmd := SIDCommand{
		Opcode: uint8(L.CheckInt(1)),
		Param0: uint8(L.OptInt(2, 0)),
		Param1: uint8(L.OptInt(3, 0)),
		Param2: uint8(L.OptInt(4, 0)),
	}
	r.device.Inject(func() {
		r.device.Control().HandleCommand(cmd)
	})
	return 0
}

func (r *ScriptRunner) luaNoteOn(L *lua.LState) int {
	note := uint8(L.CheckInt(1))
	velocity := uint8(L.OptInt(2, 100))
	r.device.Inject(func() {
		r.device.Engine().NoteOn(note, velocity)
	})
	return 0
}

func (r *ScriptRunner) luaNoteOff(L *lua.LState) int {
	note := uint8(L.CheckInt(1))
	r.device.Inject(func() {
		r.device.Engine().NoteOff(note)
	})
	return 0
}

func (r *ScriptRunner) luaWaitFrames(L *lua.LState) int {
	n := L.CheckInt(1)
	if n > 0 {
		time.Sleep(time.Duration(n) * 20 * time.Millisecond) // PAL frame
	}
	return 0
}
