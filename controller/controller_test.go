package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	seq "lautenbacher.net/gointerval/sequencer"
)

// recorder collects observer calls together with the snapshot visible at
// the time of each call.
type recorder struct {
	mu     sync.Mutex
	ctrl   *Controller
	events []string
	ticks  []RunState
	cues   []int
}

func (r *recorder) OnTick(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("tick %d", remaining))
	if r.ctrl != nil {
		r.ticks = append(r.ticks, r.ctrl.Snapshot())
	}
}

func (r *recorder) OnCue(pulses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("cue %d", pulses))
	r.cues = append(r.cues, pulses)
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := r.events
	r.events = nil
	return ret
}

func (r *recorder) cueCounts() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[int]int)
	for _, c := range r.cues {
		counts[c]++
	}
	return counts
}

func newTestController(t *testing.T, cfg seq.Config) (*Controller, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	ctrl := New(clock, rec, Options{})
	rec.ctrl = ctrl
	require.NoError(t, ctrl.Configure(cfg))
	return ctrl, clock, rec
}

func countdown(from int) []string {
	ret := make([]string, 0, from)
	for i := from - 1; i >= 0; i-- {
		ret = append(ret, fmt.Sprintf("tick %d", i))
	}
	return ret
}

func TestNew_Idle(t *testing.T) {
	ctrl := New(nil, nil, Options{})
	state := ctrl.Snapshot()

	assert.Equal(t, Idle, state.Status)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, 3, state.SeriesCount)
	assert.Empty(t, state.RunID)
	assert.Equal(t, seq.DefaultConfig(), ctrl.Config())
}

func TestStart_InitialState(t *testing.T) {
	ctrl, clock, _ := newTestController(t, seq.DefaultConfig())

	require.NoError(t, ctrl.Start())
	state := ctrl.Snapshot()

	assert.Equal(t, Running, state.Status)
	assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
	assert.Equal(t, 1, state.Series)
	assert.Equal(t, 10, state.Remaining)
	assert.NotEmpty(t, state.RunID)
	assert.Equal(t, 1, clock.active(), "exactly one tick source while running")

	select {
	case <-ctrl.Updates():
	default:
		t.Fatal("Start should publish an update")
	}
}

func TestExampleScenario(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.Config{PrepareSeconds: 10, ExerciseSeconds: 30, BreakSeconds: 15, SeriesCount: 3})
	require.NoError(t, ctrl.Start())

	for series := 1; series <= 3; series++ {
		clock.Advance(10 * time.Second)
		assert.Equal(t, append(countdown(10), "cue 4"), rec.take())
		state := ctrl.Snapshot()
		assert.Equal(t, seq.Exercise, state.Phase)
		assert.Equal(t, series, state.Series)
		assert.Equal(t, 30, state.Remaining)

		clock.Advance(30 * time.Second)
		assert.Equal(t, append(countdown(30), "cue 2"), rec.take())
		state = ctrl.Snapshot()
		assert.Equal(t, seq.PrepareBeforeBreak, state.Phase)
		assert.Equal(t, 10, state.Remaining)

		clock.Advance(10 * time.Second)
		assert.Equal(t, append(countdown(10), "cue 4"), rec.take())
		state = ctrl.Snapshot()
		assert.Equal(t, seq.Break, state.Phase)
		assert.Equal(t, 15, state.Remaining)

		clock.Advance(15 * time.Second)
		assert.Equal(t, countdown(15), rec.take(), "no cue at the end of a break")
		state = ctrl.Snapshot()
		if series < 3 {
			assert.Equal(t, Running, state.Status)
			assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
			assert.Equal(t, series+1, state.Series)
			assert.Equal(t, 10, state.Remaining)
		} else {
			assert.Equal(t, Finished, state.Status)
			assert.Equal(t, 0, state.Remaining)
			assert.Equal(t, seq.Break, state.Phase)
			assert.Equal(t, 3, state.Series)
		}
	}

	clock.Advance(time.Hour)
	assert.Empty(t, rec.take(), "no new phase starts after the last series")
	assert.Equal(t, 0, clock.active())
}

func TestCueLaw(t *testing.T) {
	for count := 1; count <= 4; count++ {
		t.Run(fmt.Sprintf("series=%d", count), func(t *testing.T) {
			cfg := seq.Config{PrepareSeconds: 2, ExerciseSeconds: 3, BreakSeconds: 1, SeriesCount: count}
			ctrl, clock, rec := newTestController(t, cfg)
			require.NoError(t, ctrl.Start())

			clock.Advance(time.Duration(seq.TotalSeconds(cfg)) * time.Second)

			assert.Equal(t, Finished, ctrl.Snapshot().Status)
			counts := rec.cueCounts()
			assert.Equal(t, 2*count, counts[4])
			assert.Equal(t, count, counts[2])
			assert.Len(t, counts, 2)
		})
	}
}

func TestTickCountLaw(t *testing.T) {
	cfg := seq.Config{PrepareSeconds: 3, ExerciseSeconds: 5, BreakSeconds: 2, SeriesCount: 2}
	ctrl, clock, rec := newTestController(t, cfg)
	require.NoError(t, ctrl.Start())

	clock.Advance(time.Duration(seq.TotalSeconds(cfg)) * time.Second)

	var ticks []RunState
	rec.mu.Lock()
	ticks = append(ticks, rec.ticks...)
	rec.mu.Unlock()

	require.Len(t, ticks, seq.TotalSeconds(cfg))
	phase, series := seq.PrepareBeforeExercise, 1
	i := 0
	for {
		zeros := 0
		for n := seq.DurationOf(phase, cfg) - 1; n >= 0; n-- {
			state := ticks[i]
			assert.Equal(t, phase, state.Phase)
			assert.Equal(t, series, state.Series)
			assert.Equal(t, n, state.Remaining, "remaining decreases by one per tick")
			if state.Remaining == 0 {
				zeros++
			}
			i++
		}
		assert.Equal(t, 1, zeros, "remaining reaches 0 exactly once per phase")
		next := seq.Next(phase, series, cfg)
		if next.Kind == seq.Complete {
			break
		}
		phase, series = next.Phase, next.Series
	}
	assert.Equal(t, len(ticks), i)
}

func TestSingleSeriesBoundary(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.Config{PrepareSeconds: 1, ExerciseSeconds: 1, BreakSeconds: 1, SeriesCount: 1})
	require.NoError(t, ctrl.Start())

	var phases []seq.Phase
	for i := 0; i < 4; i++ {
		phases = append(phases, ctrl.Snapshot().Phase)
		clock.Advance(time.Second)
	}

	assert.Equal(t, seq.Phases, phases)
	assert.Equal(t, []string{"tick 0", "cue 4", "tick 0", "cue 2", "tick 0", "cue 4", "tick 0"}, rec.take())
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
}

func TestMinimumDurationStillTicks(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.Config{PrepareSeconds: 1, ExerciseSeconds: 1, BreakSeconds: 1, SeriesCount: 3})
	require.NoError(t, ctrl.Start())

	for i := 0; i < 12; i++ {
		before := ctrl.Snapshot()
		assert.Equal(t, 1, before.Remaining)
		assert.Equal(t, 1, clock.active())

		clock.Advance(time.Second)
		events := rec.take()
		require.NotEmpty(t, events)
		assert.Equal(t, "tick 0", events[0], "a 1s phase produces one tick before expiry")
		if pulses := seq.CuePulses(before.Phase); pulses > 0 {
			assert.Equal(t, []string{"tick 0", fmt.Sprintf("cue %d", pulses)}, events)
		} else {
			assert.Equal(t, []string{"tick 0"}, events)
		}
	}
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
	assert.Equal(t, 0, clock.active())
}

func TestZeroDurationPhaseExpiresOnce(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.DefaultConfig())
	// Bypass Configure to get a prepare phase of zero length.
	ctrl.config = seq.Config{PrepareSeconds: 0, ExerciseSeconds: 1, BreakSeconds: 1, SeriesCount: 1}
	require.NoError(t, ctrl.Start())
	assert.Equal(t, 0, ctrl.Snapshot().Remaining)

	clock.Advance(4 * time.Second)

	assert.Equal(t, []string{"tick 0", "cue 4", "tick 0", "cue 2", "tick 0", "cue 4", "tick 0"}, rec.take())
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
}

func TestStop(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.DefaultConfig())
	require.NoError(t, ctrl.Start())
	clock.Advance(13 * time.Second)
	rec.take()

	ctrl.Stop()
	state := ctrl.Snapshot()

	assert.Equal(t, Finished, state.Status)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, seq.Exercise, state.Phase, "phase is kept for display")
	assert.Equal(t, 1, state.Series, "series is kept for display")
	assert.Equal(t, 13, state.Elapsed, "elapsed time is kept for display")
	assert.Equal(t, 0, clock.active())
}

func TestStop_NoZombieTicks(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.DefaultConfig())
	require.NoError(t, ctrl.Start())
	clock.Advance(3 * time.Second)
	rec.take()

	ctrl.Stop()
	late := clock.fireStopped()
	clock.Advance(time.Minute)

	assert.Equal(t, 1, late, "the pending tick was cancelled")
	assert.Empty(t, rec.take(), "no callbacks after Stop")
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
}

func TestStop_WhenNotRunningIsNoop(t *testing.T) {
	ctrl, _, rec := newTestController(t, seq.DefaultConfig())

	ctrl.Stop()
	assert.Equal(t, Idle, ctrl.Snapshot().Status)

	require.NoError(t, ctrl.Start())
	ctrl.Stop()
	runID := ctrl.Snapshot().RunID
	ctrl.Stop()
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
	assert.Equal(t, runID, ctrl.Snapshot().RunID)
	assert.Empty(t, rec.take())
}

func TestStart_WhileRunningIsRejected(t *testing.T) {
	ctrl, clock, _ := newTestController(t, seq.DefaultConfig())
	require.NoError(t, ctrl.Start())
	clock.Advance(2 * time.Second)
	before := ctrl.Snapshot()

	err := ctrl.Start()

	assert.True(t, errors.Is(err, ErrPreconditionViolation))
	assert.Equal(t, before, ctrl.Snapshot(), "state is untouched")
	assert.Equal(t, 1, clock.active(), "no second tick loop")
}

func TestStart_AfterFinishedResets(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.Config{PrepareSeconds: 2, ExerciseSeconds: 2, BreakSeconds: 2, SeriesCount: 2})
	require.NoError(t, ctrl.Start())
	clock.Advance(11 * time.Second)
	ctrl.Stop()
	first := ctrl.Snapshot()
	require.Equal(t, 2, first.Series)
	rec.take()

	require.NoError(t, ctrl.Start())
	state := ctrl.Snapshot()

	assert.Equal(t, Running, state.Status)
	assert.Equal(t, 1, state.Series)
	assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
	assert.Equal(t, 2, state.Remaining)
	assert.NotEqual(t, first.RunID, state.RunID)

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"tick 1", "tick 0", "cue 4"}, rec.take())
}

func TestRapidRestart(t *testing.T) {
	ctrl, clock, rec := newTestController(t, seq.Config{PrepareSeconds: 1, ExerciseSeconds: 1, BreakSeconds: 1, SeriesCount: 1})

	for i := 0; i < 20; i++ {
		require.NoError(t, ctrl.Start())
		ctrl.Stop()
	}
	clock.fireStopped()
	assert.Empty(t, rec.take())

	require.NoError(t, ctrl.Start())
	assert.Equal(t, 1, clock.active())
	clock.Advance(time.Second)
	assert.Equal(t, []string{"tick 0", "cue 4"}, rec.take())
}

func TestConfigure(t *testing.T) {
	ctrl, clock, _ := newTestController(t, seq.DefaultConfig())

	valid := seq.Config{PrepareSeconds: 5, ExerciseSeconds: 20, BreakSeconds: 10, SeriesCount: 4}
	require.NoError(t, ctrl.Configure(valid))
	assert.Equal(t, valid, ctrl.Config())
	assert.Equal(t, 4, ctrl.Snapshot().SeriesCount)

	err := ctrl.Configure(seq.Config{PrepareSeconds: 5, ExerciseSeconds: 0, BreakSeconds: 10, SeriesCount: 4})
	assert.True(t, errors.Is(err, seq.ErrInvalidConfiguration))
	assert.Equal(t, valid, ctrl.Config(), "no partial mutation")

	require.NoError(t, ctrl.Start())
	err = ctrl.Configure(seq.DefaultConfig())
	assert.True(t, errors.Is(err, ErrPreconditionViolation))
	assert.Equal(t, valid, ctrl.Config())

	clock.Advance(time.Second)
	ctrl.Stop()
	assert.NoError(t, ctrl.Configure(seq.DefaultConfig()), "configure is allowed again once finished")
}

func TestConfigure_AppliesToNextRunOnly(t *testing.T) {
	ctrl, clock, _ := newTestController(t, seq.Config{PrepareSeconds: 3, ExerciseSeconds: 3, BreakSeconds: 3, SeriesCount: 1})
	require.NoError(t, ctrl.Start())
	clock.Advance(12 * time.Second)
	require.Equal(t, Finished, ctrl.Snapshot().Status)

	require.NoError(t, ctrl.Configure(seq.Config{PrepareSeconds: 7, ExerciseSeconds: 3, BreakSeconds: 3, SeriesCount: 2}))
	assert.Equal(t, 1, ctrl.Snapshot().SeriesCount, "finished run keeps its own series count")

	require.NoError(t, ctrl.Start())
	assert.Equal(t, 7, ctrl.Snapshot().Remaining)
	assert.Equal(t, 2, ctrl.Snapshot().SeriesCount)
}

func TestRunState_JSON(t *testing.T) {
	state := RunState{Status: Running, Phase: seq.PrepareBeforeBreak, Series: 2, SeriesCount: 3, Remaining: 7, Elapsed: 58, RunID: "abc"}
	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Status":"Running","Phase":"PrepareBeforeBreak","Series":2,"SeriesCount":3,"Remaining":7,"Elapsed":58,"RunID":"abc"}`, string(data))
}

func TestSystemClockRun(t *testing.T) {
	rec := &recorder{}
	ctrl := New(SystemClock, rec, Options{Period: 2 * time.Millisecond})
	require.NoError(t, ctrl.Configure(seq.Config{PrepareSeconds: 1, ExerciseSeconds: 2, BreakSeconds: 1, SeriesCount: 2}))
	require.NoError(t, ctrl.Start())

	assert.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == Finished
	}, 2*time.Second, 5*time.Millisecond)

	events := rec.take()
	ticks := 0
	for _, e := range events {
		if e[:4] == "tick" {
			ticks++
		}
	}
	assert.Equal(t, 10, ticks)
	assert.Equal(t, map[int]int{4: 4, 2: 2}, rec.cueCounts())
}

func TestRunConfig_FollowsTheRun(t *testing.T) {
	ctrl, _, _ := newTestController(t, seq.DefaultConfig())
	assert.Equal(t, seq.DefaultConfig(), ctrl.RunConfig(), "idle reports the stored configuration")

	require.NoError(t, ctrl.Start())
	next := seq.Config{PrepareSeconds: 1, ExerciseSeconds: 2, BreakSeconds: 3, SeriesCount: 4}
	ctrl.Stop()
	require.NoError(t, ctrl.Configure(next))

	assert.Equal(t, seq.DefaultConfig(), ctrl.RunConfig(), "finished reports the last run")
	assert.Equal(t, next, ctrl.Config())

	require.NoError(t, ctrl.Start())
	assert.Equal(t, next, ctrl.RunConfig())
}

func TestElapsed_FollowsTheRun(t *testing.T) {
	cfg := seq.Config{PrepareSeconds: 2, ExerciseSeconds: 3, BreakSeconds: 1, SeriesCount: 2}
	ctrl, clock, _ := newTestController(t, cfg)
	require.NoError(t, ctrl.Start())
	assert.Equal(t, 0, ctrl.Snapshot().Elapsed)

	for want := 1; want <= seq.TotalSeconds(cfg); want++ {
		clock.Advance(time.Second)
		assert.Equal(t, want, ctrl.Snapshot().Elapsed)
	}
	assert.Equal(t, Finished, ctrl.Snapshot().Status)
	assert.Equal(t, seq.TotalSeconds(cfg), ctrl.Snapshot().Elapsed)
}

func TestStart_LargeSeriesCount(t *testing.T) {
	cfg := seq.Config{PrepareSeconds: 1, ExerciseSeconds: 1, BreakSeconds: 1, SeriesCount: math.MaxInt / 2}
	ctrl, clock, rec := newTestController(t, cfg)

	require.NotPanics(t, func() { require.NoError(t, ctrl.Start()) })
	assert.Equal(t, math.MaxInt/2, ctrl.Snapshot().SeriesCount)
	assert.Equal(t, cfg, ctrl.RunConfig())

	clock.Advance(4 * time.Second)
	state := ctrl.Snapshot()
	assert.Equal(t, Running, state.Status)
	assert.Equal(t, 2, state.Series)
	assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
	assert.Equal(t, 4, state.Elapsed)
	assert.Len(t, rec.take(), 7, "four ticks and three cues")

	ctrl.Stop()
	assert.Equal(t, 0, clock.active())
}

func TestStart_LargeDurations(t *testing.T) {
	cfg := seq.Config{PrepareSeconds: math.MaxInt, ExerciseSeconds: math.MaxInt, BreakSeconds: math.MaxInt, SeriesCount: math.MaxInt}
	ctrl, clock, _ := newTestController(t, cfg)

	require.NotPanics(t, func() { require.NoError(t, ctrl.Start()) })
	assert.Equal(t, math.MaxInt, ctrl.Snapshot().Remaining)

	clock.Advance(2 * time.Second)
	state := ctrl.Snapshot()
	assert.Equal(t, math.MaxInt-2, state.Remaining)
	assert.Equal(t, 2, state.Elapsed)
	ctrl.Stop()
}

// stopper stops the controller from inside the tick notification that
// reports remaining == at.
type stopper struct {
	recorder
	at int
}

func (s *stopper) OnTick(remaining int) {
	s.recorder.OnTick(remaining)
	if remaining == s.at {
		s.ctrl.Stop()
	}
}

func TestObserver_MayStopTheRun(t *testing.T) {
	for _, at := range []int{5, 0} {
		t.Run(fmt.Sprintf("at=%d", at), func(t *testing.T) {
			clock := newFakeClock()
			obs := &stopper{at: at}
			ctrl := New(clock, obs, Options{})
			obs.ctrl = ctrl
			require.NoError(t, ctrl.Start())

			done := make(chan struct{})
			go func() {
				clock.Advance(time.Minute)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("stopping from an observer deadlocked")
			}

			assert.Equal(t, countdown(10)[:10-at], obs.take(), "no cue once stopped, not even for an expiring phase")
			state := ctrl.Snapshot()
			assert.Equal(t, Finished, state.Status)
			assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
			assert.Equal(t, 0, clock.active())
		})
	}
}

// restarter starts a new run when the first cue arrives.
type restarter struct {
	recorder
	once sync.Once
	err  error
}

func (r *restarter) OnCue(pulses int) {
	r.recorder.OnCue(pulses)
	r.once.Do(func() {
		r.ctrl.Stop()
		r.err = r.ctrl.Start()
	})
}

func TestObserver_MayRestartTheRun(t *testing.T) {
	clock := newFakeClock()
	obs := &restarter{}
	ctrl := New(clock, obs, Options{})
	obs.ctrl = ctrl
	require.NoError(t, ctrl.Configure(seq.Config{PrepareSeconds: 2, ExerciseSeconds: 3, BreakSeconds: 1, SeriesCount: 1}))
	require.NoError(t, ctrl.Start())
	first := ctrl.Snapshot().RunID

	clock.Advance(2 * time.Second)

	require.NoError(t, obs.err)
	state := ctrl.Snapshot()
	assert.Equal(t, Running, state.Status)
	assert.NotEqual(t, first, state.RunID)
	assert.Equal(t, seq.PrepareBeforeExercise, state.Phase)
	assert.Equal(t, 2, state.Remaining)
	assert.Equal(t, 1, clock.active(), "only the new run ticks")
	assert.Equal(t, []string{"tick 1", "tick 0", "cue 4"}, obs.take())
}
