package controller

import (
	"errors"

	seq "lautenbacher.net/gointerval/sequencer"
)

// ErrPreconditionViolation is returned when Start or Configure are
// called while a run is in progress.
var ErrPreconditionViolation = errors.New("precondition violation")

// Status of the controller.
type Status int

const (
	Idle Status = iota
	Running
	Finished
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	}
	return "Unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunState is a copy of the controller's state at one point in time.
// Phase and Series stay at their last values after a run stopped. Elapsed
// counts the seconds of the run behind the current position; a stopped run
// keeps the value it had when it was stopped.
type RunState struct {
	Status      Status    `json:"Status"`
	Phase       seq.Phase `json:"Phase"`
	Series      int       `json:"Series"`
	SeriesCount int       `json:"SeriesCount"`
	Remaining   int       `json:"Remaining"`
	Elapsed     int       `json:"Elapsed"`
	RunID       string    `json:"RunID,omitempty"`
}

// Observer receives the notifications of a running countdown. Both
// methods are called from the tick handler, one at a time and after the
// controller has released its lock, so they may call any controller
// method, Stop included. Each notification checks that no Stop or Start
// happened since its tick, so an earlier run stops notifying as soon as
// Stop returns; only a call that passed the check concurrently with Stop
// can still be running.
type Observer interface {
	// OnTick is called once per elapsed second with the remaining time
	// of the current phase; the last call of a phase carries 0.
	OnTick(remaining int)
	// OnCue is called when a phase with a cue policy expires.
	OnCue(pulses int)
}

// ObserverFuncs adapts plain functions to an Observer. Nil fields are
// skipped.
type ObserverFuncs struct {
	Tick func(remaining int)
	Cue  func(pulses int)
}

func (o ObserverFuncs) OnTick(remaining int) {
	if o.Tick != nil {
		o.Tick(remaining)
	}
}

func (o ObserverFuncs) OnCue(pulses int) {
	if o.Cue != nil {
		o.Cue(pulses)
	}
}
