package cue

import (
	"math"
	"sync/atomic"
)

// sine produces a gated mono sine wave, one buffer at a time. Its phase
// carries over between buffers so the tone has no clicks at buffer edges.
type sine struct {
	on     atomic.Bool
	phase  float64
	step   float64
	volume float32
}

func newSine(frequency float64, sampleRate int, volume float64) *sine {
	return &sine{
		step:   2 * math.Pi * frequency / float64(sampleRate),
		volume: float32(volume),
	}
}

// fill writes the next samples into out; silence while the gate is off.
func (s *sine) fill(out []float32) {
	if !s.on.Load() {
		clear(out)
		return
	}
	for i := range out {
		out[i] = s.volume * float32(math.Sin(s.phase))
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}
