package cue

import "time"

// Pattern returns the waveform for a cue of the given number of pulses as
// alternating wait and on durations, starting with a zero wait:
//
//	0, on, off, on, off, on, ...
//
// The result has 2*pulses entries with pulses capped at maxPulses. It is nil for
// pulses <= 0.
func Pattern(pulses int, on, off time.Duration, maxPulses int) []time.Duration {
	if pulses > maxPulses {
		pulses = maxPulses
	}
	if pulses <= 0 {
		return nil
	}
	pattern := make([]time.Duration, 0, 2*pulses)
	for i := range pulses {
		if i == 0 {
			pattern = append(pattern, 0)
		} else {
			pattern = append(pattern, off)
		}
		pattern = append(pattern, on)
	}
	return pattern
}

// Length is the wall time a pattern takes to play.
func Length(pattern []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range pattern {
		total += d
	}
	return total
}
