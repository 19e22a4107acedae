// sid_notes.go - MIDI-style note entry points with LRU voice stealing

package main

import "math"

// voiceSlot tracks one of the three SID voices for the note-on/off path.
// Stealing picks the slot with the oldest generation stamp.
type voiceSlot struct {
	active     bool
	note       uint8
	velocity   uint8
	generation uint32
}

// midiNoteToSIDFreq converts a MIDI note number to the SID's 16-bit
// frequency register value: Fout * 16777216 / clockHz.
func midiNoteToSIDFreq(note uint8, clockHz float64) uint16 {
	noteHz := 440.0 * math.Pow(2.0, float64(int(note)-69)/12.0)
	sidValue := noteHz * 16777216.0 / clockHz
	if sidValue < 0 {
		sidValue = 0
	} else if sidValue > 65535 {
		sidValue = 65535
	}
	return uint16(sidValue + 0.5)
}

// velocityToSustain maps MIDI velocity 0-127 onto the 4-bit sustain level.
func velocityToSustain(velocity uint8) uint8 {
	if velocity == 0 {
		return 0
	}
	scaled := (uint32(velocity)*15 + 63) / 127
	if scaled > 15 {
		scaled = 15
	}
	return uint8(scaled)
}

func (e *SIDEngine) findVoiceForNote(note uint8) int {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].note == note {
			return i
		}
	}
	return -1
}

func (e *SIDEngine) allocateVoiceSlot() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	candidate := 0
	oldest := e.voices[0].generation
	for i := 1; i < len(e.voices); i++ {
		if e.voices[i].generation < oldest {
			oldest = e.voices[i].generation
			candidate = i
		}
	}
	return candidate
}

// NoteOn triggers a note on a free (or stolen) voice, writing directly to
// both cells. This path coexists with the raw register stream; both write
// the same registers in arrival order.
func (e *SIDEngine) NoteOn(note, velocity uint8) {
	voice := e.findVoiceForNote(note)
	if voice < 0 {
		voice = e.allocateVoiceSlot()
	}

	slot := &e.voices[voice]
	slot.active = true
	slot.note = note
	slot.velocity = velocity
	e.voiceGeneration++
	slot.generation = e.voiceGeneration

	freq := midiNoteToSIDFreq(note, e.clockHz)
	base := uint8(voice * 7)

	for _, cell := range e.cells {
		// Pulse the TEST bit to restart the oscillator phase, then program
		// frequency and sustain before opening the gate.
		cell.Write(base+4, SID_CTRL_TEST)
		cell.Write(base+4, 0x00)

		cell.Write(base+0, uint8(freq))
		cell.Write(base+1, uint8(freq>>8))
		cell.Write(base+6, (velocityToSustain(velocity)<<4)|sidDefaultReleaseRate)

		cell.Write(base+4, sidWaveformSaw|SID_CTRL_GATE)
	}
}

// NoteOff releases the voice holding the note, if any.
func (e *SIDEngine) NoteOff(note uint8) {
	voice := e.findVoiceForNote(note)
	if voice < 0 {
		return
	}
	base := uint8(voice * 7)
	for _, cell := range e.cells {
		cell.Write(base+4, sidWaveformSaw) // clear gate, keep waveform
	}
	e.voices[voice].active = false
}
