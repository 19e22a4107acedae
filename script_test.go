// script_test.go - Lua automation surface

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auto.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScript_QueueEventsAndCommands(t *testing.T) {
	dev := NewDevice(DeviceConfig{SampleRate: 44100})
	dev.SetPaused(true)

	path := writeScript(t, `
queue_event(1, 0x18, 0x0F, 0)
queue_event(0, 0x00, 0x42, 100)
command(0x01)
`)
	if err := NewScriptRunner(dev, path).Run(); err != nil {
		t.Fatalf("script: %v", err)
	}
	dev.Tick() // drain injected work
	drainAudio(dev)

	if depth := dev.HostQueue().Depth(); depth != 2 {
		t.Errorf("host queue depth = %d, want 2", depth)
	}
	if dev.Engine().Mode() != SID_MODE_8580 {
		t.Errorf("mode = %v, want 8580 after one cycle", dev.Engine().Mode())
	}
}

func TestScript_Notes(t *testing.T) {
	dev := NewDevice(DeviceConfig{SampleRate: 44100})

	path := writeScript(t, `
note_on(60, 100)
note_on(64, 90)
note_off(60)
`)
	if err := NewScriptRunner(dev, path).Run(); err != nil {
		t.Fatalf("script: %v", err)
	}
	dev.Tick()
	drainAudio(dev)

	active := 0
	for _, v := range dev.Engine().voices {
		if v.active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active voices = %d, want 1", active)
	}
}

func TestScript_ErrorSurfaces(t *testing.T) {
	dev := NewDevice(DeviceConfig{SampleRate: 44100})
	path := writeScript(t, `this is not lua`)
	if err := NewScriptRunner(dev, path).Run(); err == nil {
		t.Errorf("syntax error not reported")
	}
}
