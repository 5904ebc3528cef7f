package sequencer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned by Config.Validate for any
// non-positive field.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Phase is one of the four countdown segments of a series.
type Phase int

const (
	PrepareBeforeExercise Phase = iota
	Exercise
	PrepareBeforeBreak
	Break
)

// Phases lists all phases in the order they are run within a series.
var Phases = []Phase{PrepareBeforeExercise, Exercise, PrepareBeforeBreak, Break}

func (p Phase) String() string {
	switch p {
	case PrepareBeforeExercise, PrepareBeforeBreak:
		return "Prepare"
	case Exercise:
		return "Exercise"
	case Break:
		return "Break"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Name returns the identifier of p, distinguishing the two prepare
// phases.
func (p Phase) Name() string {
	switch p {
	case PrepareBeforeExercise:
		return "PrepareBeforeExercise"
	case Exercise:
		return "Exercise"
	case PrepareBeforeBreak:
		return "PrepareBeforeBreak"
	case Break:
		return "Break"
	}
	return p.String()
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.Name()), nil
}

// Config holds the durations (in seconds) and the number of series of
// one run. It is immutable for the duration of a run.
type Config struct {
	PrepareSeconds  int `yaml:"PrepareSeconds" json:"PrepareSeconds"`
	ExerciseSeconds int `yaml:"ExerciseSeconds" json:"ExerciseSeconds"`
	BreakSeconds    int `yaml:"BreakSeconds" json:"BreakSeconds"`
	SeriesCount     int `yaml:"SeriesCount" json:"SeriesCount"`
}

// DefaultConfig is the configuration used until something else is
// configured: 10s prepare, 30s exercise, 15s break, 3 series.
func DefaultConfig() Config {
	return Config{
		PrepareSeconds:  10,
		ExerciseSeconds: 30,
		BreakSeconds:    15,
		SeriesCount:     3,
	}
}

// Validate checks that all four fields are positive.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"PrepareSeconds", c.PrepareSeconds},
		{"ExerciseSeconds", c.ExerciseSeconds},
		{"BreakSeconds", c.BreakSeconds},
		{"SeriesCount", c.SeriesCount},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfiguration, f.name, f.value)
		}
	}
	return nil
}

// DurationOf returns the configured length of phase in seconds. Both
// prepare phases share PrepareSeconds.
func DurationOf(phase Phase, cfg Config) int {
	switch phase {
	case PrepareBeforeExercise, PrepareBeforeBreak:
		return cfg.PrepareSeconds
	case Exercise:
		return cfg.ExerciseSeconds
	case Break:
		return cfg.BreakSeconds
	}
	return 0
}

// CuePulses returns the number of cue pulses to emit when phase expires.
// A Break ends silently.
func CuePulses(phase Phase) int {
	switch phase {
	case PrepareBeforeExercise, PrepareBeforeBreak:
		return 4
	case Exercise:
		return 2
	}
	return 0
}
