// flow_control_test.go - Watermark hysteresis

package main

import "testing"

func TestFlowController_Watermarks(t *testing.T) {
	q := NewEventQueue(4096)
	fc := NewFlowController(q)

	if fc.Paused() {
		t.Fatal("paused at start")
	}

	// Fill to just under the high watermark: still flowing.
	for i := 0; i < 4096-FLOW_HIGH_WATER_MARGIN-1; i++ {
		q.Push(SIDEvent{})
	}
	if fc.Consider() {
		t.Fatalf("paused below high watermark at depth %d", q.Depth())
	}

	// One more crosses it.
	q.Push(SIDEvent{})
	if !fc.Consider() {
		t.Fatalf("not paused at high watermark, depth %d", q.Depth())
	}

	// Draining to just above the low watermark keeps the halt asserted.
	for q.Depth() > FLOW_LOW_WATER+1 {
		q.Pop()
	}
	if !fc.Consider() {
		t.Errorf("released above low watermark at depth %d", q.Depth())
	}

	// At the low watermark the halt releases.
	q.Pop()
	if fc.Consider() {
		t.Errorf("still paused at low watermark, depth %d", q.Depth())
	}
}

func TestFlowController_Release(t *testing.T) {
	q := NewEventQueue(4096)
	fc := NewFlowController(q)
	for i := 0; i < 4096; i++ {
		q.Push(SIDEvent{})
	}
	fc.Consider()
	if !fc.Paused() {
		t.Fatal("expected paused")
	}
	fc.Release()
	if fc.Paused() {
		t.Error("Release did not clear the halt")
	}
}

func TestFlowController_SmallQueueWatermarks(t *testing.T) {
	// A queue smaller than the default band still gets a sane hysteresis.
	q := NewEventQueue(256)
	fc := NewFlowController(q)
	if fc.lowWater >= fc.highWater {
		t.Errorf("degenerate watermarks: low=%d high=%d", fc.lowWater, fc.highWater)
	}
}
