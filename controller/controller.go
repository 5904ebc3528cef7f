package controller

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	seq "lautenbacher.net/gointerval/sequencer"
	u "lautenbacher.net/gointerval/util"
)

// Options tune a Controller. The zero value is usable.
type Options struct {
	// Period between two ticks, one second unless set.
	Period time.Duration
	Logger *slog.Logger
}

// Controller owns the single active countdown of an interval run. It
// asks the sequencer what follows each expired phase and keeps exactly
// one tick source alive while running.
type Controller struct {
	// Serializes observer notifications. Taken before mu by the tick
	// handler; never taken by the public methods.
	notify sync.Mutex
	// Guards everything below.
	mu       sync.Mutex
	clock    Clock
	observer Observer
	period   time.Duration
	log      *slog.Logger
	// configuration for the next Start
	config seq.Config
	// configuration of the current run
	runCfg   seq.Config
	state    RunState
	source   *tickSource
	snapshot *u.AtomicEvent[RunState]
	// bumped by Start and Stop; notifications of an older run are dropped
	epoch uint64
}

// tickSource is the periodic timer of one phase. Deadlines are computed
// from the phase start, so rescheduling does not accumulate drift.
type tickSource struct {
	start time.Time
	ticks int
	timer Timer
}

// New creates an Idle controller with the default configuration. A nil
// clock means SystemClock, a nil observer discards all notifications.
func New(clock Clock, observer Observer, opts Options) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := seq.DefaultConfig()
	return &Controller{
		clock:    clock,
		observer: observer,
		period:   opts.Period,
		log:      opts.Logger,
		config:   cfg,
		state:    RunState{Status: Idle, SeriesCount: cfg.SeriesCount},
		snapshot: u.NewAtomicEvent(RunState{Status: Idle, SeriesCount: cfg.SeriesCount}),
	}
}

// Configure stores cfg for the next Start. It fails with
// ErrPreconditionViolation while running and with
// seq.ErrInvalidConfiguration if cfg has a non-positive field; in both
// cases the stored configuration is left untouched.
func (s *Controller) Configure(cfg seq.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == Running {
		return fmt.Errorf("%w: configure while running", ErrPreconditionViolation)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.config = cfg
	if s.state.Status == Idle {
		s.state.SeriesCount = cfg.SeriesCount
		s.publishLocked()
	}
	s.log.Debug("Interval configuration stored", "prepare", cfg.PrepareSeconds, "exercise", cfg.ExerciseSeconds,
		"break", cfg.BreakSeconds, "series", cfg.SeriesCount)
	return nil
}

// Config returns the configuration the next Start will use.
func (s *Controller) Config() seq.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// RunConfig returns the configuration of the current or last run, or the
// stored one if nothing has run yet.
func (s *Controller) RunConfig() seq.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == Idle {
		return s.config
	}
	return s.runCfg
}

// Start begins a new run from the first prepare phase of series 1. It
// fails with ErrPreconditionViolation if a run is already in progress.
func (s *Controller) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == Running {
		return fmt.Errorf("%w: already running", ErrPreconditionViolation)
	}
	s.cancelSourceLocked()
	s.epoch++

	s.runCfg = s.config
	s.state = RunState{
		Status:      Running,
		Phase:       seq.PrepareBeforeExercise,
		Series:      1,
		SeriesCount: s.runCfg.SeriesCount,
		Remaining:   seq.DurationOf(seq.PrepareBeforeExercise, s.runCfg),
		RunID:       uuid.NewString(),
	}
	s.publishLocked()
	s.log.Info("Interval run started", "run", s.state.RunID, "series", s.runCfg.SeriesCount,
		"seconds", seq.TotalSeconds(s.runCfg))

	s.startSourceLocked(s.clock.Now())
	return nil
}

// Stop ends a running countdown. Phase and Series keep their last values.
// Calling Stop while not running does nothing.
func (s *Controller) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != Running {
		return
	}
	s.epoch++
	s.finishLocked("stopped")
}

// Snapshot returns the latest published state. It does not wait for a
// tick in progress.
func (s *Controller) Snapshot() RunState {
	return s.snapshot.Value()
}

// Updates is signalled whenever the published state changed since the
// last receive.
func (s *Controller) Updates() <-chan struct{} {
	return s.snapshot.Channel()
}

func (s *Controller) publishLocked() {
	if s.state.Status == Running {
		s.state.Elapsed = seq.Elapsed(s.runCfg, s.state.Phase, s.state.Series, s.state.Remaining)
	}
	s.snapshot.Send(s.state)
}

func (s *Controller) finishLocked(reason string) {
	s.cancelSourceLocked()
	s.state.Elapsed = seq.Elapsed(s.runCfg, s.state.Phase, s.state.Series, s.state.Remaining)
	s.state.Status = Finished
	s.state.Remaining = 0
	s.publishLocked()
	s.log.Info("Interval run finished", "run", s.state.RunID, "reason", reason,
		"phase", s.state.Phase.Name(), "series", s.state.Series)
}

// startSourceLocked replaces the current tick source by a new one for a
// phase beginning at start. The old one is cancelled first.
func (s *Controller) startSourceLocked(start time.Time) {
	s.cancelSourceLocked()
	src := &tickSource{start: start}
	s.source = src
	s.scheduleLocked(src)
}

func (s *Controller) cancelSourceLocked() {
	if s.source == nil {
		return
	}
	if s.source.timer != nil {
		s.source.timer.Stop()
	}
	s.source = nil
}

func (s *Controller) scheduleLocked(src *tickSource) {
	deadline := src.start.Add(time.Duration(src.ticks+1) * s.period)
	delay := deadline.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	src.timer = s.clock.AfterFunc(delay, func() { s.fire(src) })
}

// fire handles one period of src. A source that has been replaced or
// cancelled in the meantime is ignored. The tick is delivered before the
// phase expires, so an observer still sees the expiring phase in its
// Snapshot.
func (s *Controller) fire(src *tickSource) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	if s.source != src || s.state.Status != Running {
		s.mu.Unlock()
		s.log.Debug("Dropping tick of a cancelled source")
		return
	}
	epoch := s.epoch
	src.ticks++
	if s.state.Remaining > 0 {
		s.state.Remaining--
	}
	s.publishLocked()
	remaining := s.state.Remaining
	if remaining > 0 {
		s.scheduleLocked(src)
	}
	s.mu.Unlock()

	if !s.current(epoch) {
		return
	}
	s.observer.OnTick(remaining)
	if remaining > 0 {
		return
	}

	s.mu.Lock()
	if s.source != src || s.epoch != epoch {
		// stopped or restarted from within OnTick
		s.mu.Unlock()
		return
	}
	pulses := s.expireLocked(src)
	s.mu.Unlock()

	if pulses > 0 && s.current(epoch) {
		s.observer.OnCue(pulses)
	}
}

// current reports whether no Start or Stop happened since epoch was
// taken.
func (s *Controller) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// expireLocked moves on to whatever the sequencer says follows the current
// phase and returns the number of pulses the expired phase cues.
func (s *Controller) expireLocked(src *tickSource) int {
	phase := s.state.Phase
	pulses := seq.CuePulses(phase)

	next := seq.Next(phase, s.state.Series, s.runCfg)
	switch next.Kind {
	case seq.Complete:
		s.finishLocked("completed")
		return pulses
	case seq.NewSeries:
		s.state.Series = next.Series
	}
	s.state.Phase = next.Phase
	s.state.Remaining = seq.DurationOf(next.Phase, s.runCfg)
	s.publishLocked()
	s.log.Debug("Phase started", "run", s.state.RunID, "phase", next.Phase.Name(),
		"series", s.state.Series, "seconds", s.state.Remaining)

	s.startSourceLocked(src.start.Add(time.Duration(src.ticks) * s.period))
	return pulses
}
