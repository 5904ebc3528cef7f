package sequencer

import "math"

// StepKind tells the controller what to do when a phase has expired.
type StepKind int

const (
	// Advance moves to the next phase of the same series.
	Advance StepKind = iota
	// NewSeries starts the next series with its first phase.
	NewSeries
	// Complete ends the run.
	Complete
)

func (k StepKind) String() string {
	switch k {
	case Advance:
		return "advance"
	case NewSeries:
		return "new-series"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// NextStep is the outcome of Next. Phase and Series are only meaningful
// for Advance and NewSeries.
type NextStep struct {
	Kind   StepKind
	Phase  Phase
	Series int
}

// Next derives what follows phase in the given series. It is total for
// every series in [1, cfg.SeriesCount]; a series beyond the count is
// treated as the last one.
func Next(phase Phase, series int, cfg Config) NextStep {
	switch phase {
	case PrepareBeforeExercise:
		return NextStep{Kind: Advance, Phase: Exercise, Series: series}
	case Exercise:
		return NextStep{Kind: Advance, Phase: PrepareBeforeBreak, Series: series}
	case PrepareBeforeBreak:
		return NextStep{Kind: Advance, Phase: Break, Series: series}
	}
	if series < cfg.SeriesCount {
		return NextStep{Kind: NewSeries, Phase: PrepareBeforeExercise, Series: series + 1}
	}
	return NextStep{Kind: Complete}
}

// SeriesSeconds is the length of one series: both prepare phases, the
// exercise and the break.
func SeriesSeconds(cfg Config) int {
	return satAdd(phaseStart(Break, cfg), max(cfg.BreakSeconds, 0))
}

// TotalSeconds is the length of a whole run. Runs too long for an int
// report math.MaxInt.
func TotalSeconds(cfg Config) int {
	if cfg.SeriesCount <= 0 {
		return 0
	}
	return satMul(cfg.SeriesCount, SeriesSeconds(cfg))
}

// Elapsed returns how many seconds of the run lie before the current
// position, given the phase, series and seconds remaining in it.
func Elapsed(cfg Config, phase Phase, series, remaining int) int {
	done := satMul(max(series-1, 0), SeriesSeconds(cfg))
	inPhase := max(DurationOf(phase, cfg)-max(remaining, 0), 0)
	return satAdd(satAdd(done, phaseStart(phase, cfg)), inPhase)
}

// At returns the phase and series that run at the given second of a run.
// Seconds past the end belong to the last break.
func At(cfg Config, second int) (Phase, int) {
	per := SeriesSeconds(cfg)
	if per <= 0 || cfg.SeriesCount <= 0 {
		return PrepareBeforeExercise, 1
	}
	second = max(second, 0)
	series := min(second/per, cfg.SeriesCount-1) + 1
	offset := second - (series-1)*per
	for i := len(Phases) - 1; i > 0; i-- {
		if offset >= phaseStart(Phases[i], cfg) {
			return Phases[i], series
		}
	}
	return Phases[0], series
}

// phaseStart is the offset of phase from the beginning of its series.
func phaseStart(phase Phase, cfg Config) int {
	prepare := max(cfg.PrepareSeconds, 0)
	exercise := max(cfg.ExerciseSeconds, 0)
	switch phase {
	case Exercise:
		return prepare
	case PrepareBeforeBreak:
		return satAdd(prepare, exercise)
	case Break:
		return satAdd(satAdd(prepare, exercise), prepare)
	}
	return 0
}

// satAdd and satMul take non-negative operands and stop at math.MaxInt.
func satAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func satMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
