// audio_pump_test.go - Buffer pool cycling and pump discipline

package main

import "testing"

func TestBufferPool_Cycle(t *testing.T) {
	pool := NewBufferPool(3, 64)

	var taken []*AudioBuffer
	for i := 0; i < 3; i++ {
		buf := pool.TakeFree()
		if buf == nil {
			t.Fatalf("free pool dry at %d", i)
		}
		taken = append(taken, buf)
	}
	if pool.TakeFree() != nil {
		t.Error("pool handed out a fourth buffer")
	}

	for _, buf := range taken {
		buf.SampleCount = 64
		pool.GiveReady(buf)
	}
	// Ready buffers come back in the order they were given.
	for i := 0; i < 3; i++ {
		buf := pool.TakeReady()
		if buf != taken[i] {
			t.Errorf("ready order violated at %d", i)
		}
		pool.GiveFree(buf)
	}
}

func TestBufferPool_UnderrunCounted(t *testing.T) {
	pool := NewBufferPool(2, 64)
	if pool.TakeReady() != nil {
		t.Fatal("empty ready queue returned a buffer")
	}
	if pool.Underruns() != 1 {
		t.Errorf("underruns = %d, want 1", pool.Underruns())
	}
}

func TestAudioPump_PrimeFillsTwo(t *testing.T) {
	engine, _, _ := newMockEngine(44100)
	pool := NewBufferPool(3, 32)
	pump := NewAudioPump(engine, pool)

	pump.Prime()
	got := 0
	for pool.TakeReady() != nil {
		got++
	}
	if got != 2 {
		t.Errorf("prime filled %d buffers, want 2", got)
	}
}

func TestAudioPump_ServiceNoopWhenDry(t *testing.T) {
	engine, _, _ := newMockEngine(44100)
	pool := NewBufferPool(2, 32)
	pump := NewAudioPump(engine, pool)

	if !pump.Service() || !pump.Service() {
		t.Fatal("service failed with free buffers available")
	}
	if pump.Service() {
		t.Error("service filled a buffer with none free")
	}
}

func TestAudioPump_FillsWholeBuffer(t *testing.T) {
	engine, left, _ := newMockEngine(44100)
	pool := NewBufferPool(2, 96)
	pump := NewAudioPump(engine, pool)

	pump.Service()
	buf := pool.TakeReady()
	if buf == nil {
		t.Fatal("no ready buffer after service")
	}
	if buf.SampleCount != 96 {
		t.Errorf("sample count = %d, want 96", buf.SampleCount)
	}
	// 96 samples at ~22.34 cycles each.
	if left.totalCycles < 96*21 || left.totalCycles > 96*23 {
		t.Errorf("clocked %d cycles for 96 samples", left.totalCycles)
	}
}

type countingTap struct {
	samples int
}

func (c *countingTap) WriteFrames(samples []int16) error {
	c.samples += len(samples)
	return nil
}

func TestAudioPump_TapSeesEveryFrame(t *testing.T) {
	engine, _, _ := newMockEngine(44100)
	pool := NewBufferPool(2, 48)
	pump := NewAudioPump(engine, pool)
	tap := &countingTap{}
	pump.SetTap(tap)

	pump.Service()
	pump.Service()
	if tap.samples != 2*48*2 {
		t.Errorf("tap saw %d samples, want %d", tap.samples, 2*48*2)
	}
}
