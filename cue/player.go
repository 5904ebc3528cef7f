package cue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"golang.org/x/exp/slices"
	c "lautenbacher.net/gointerval/config"
)

// Actuator is something that can be switched on and off to signal a cue:
// a vibration motor, a buzzer, a tone, a flashing screen.
type Actuator interface {
	Name() string
	// Audible actuators are muted during quiet hours.
	Audible() bool
	On() error
	Off() error
}

// Player plays cues on a set of actuators. Cues are queued and played one
// after the other by a single worker goroutine, so Emit never blocks the
// caller (usually the controller while it holds its lock).
type Player struct {
	mu        sync.Mutex
	queue     deque.Deque[int]
	cfg       c.CueConfig
	quiet     *QuietHours
	actuators []Actuator
	wake      chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
	started   bool
	stopped   bool
	played    int
}

func NewPlayer(cfg c.CueConfig, actuators ...Actuator) *Player {
	return &Player{
		cfg:       cfg,
		quiet:     NewQuietHours(cfg.QuietHours),
		actuators: actuators,
		wake:      make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

// SetConfig changes pulse timing and quiet hours for cues played from now
// on.
func (s *Player) SetConfig(cfg c.CueConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.quiet = NewQuietHours(cfg.QuietHours)
}

func (s *Player) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.run()
}

// Stop abandons queued cues, waits for the worker to exit and switches all
// actuators off.
func (s *Player) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.queue.Clear()
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.switchAll(s.actuators, false)
}

// Emit queues a cue of the given number of pulses. When the queue is full
// the oldest cue is dropped.
func (s *Player) Emit(pulses int) {
	if pulses <= 0 {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.queue.Len() >= s.cfg.QueueSize {
		dropped := s.queue.PopFront()
		slog.Warn("Cue queue full, dropping oldest cue", "pulses", dropped)
	}
	s.queue.PushBack(pulses)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Played returns the number of cues played to the end.
func (s *Player) Played() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

func (s *Player) next() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return 0, false
	}
	return s.queue.PopFront(), true
}

func (s *Player) run() {
	defer s.wg.Done()
	for {
		pulses, ok := s.next()
		if !ok {
			select {
			case <-s.stopChan:
				return
			case <-s.wake:
				continue
			}
		}
		if !s.play(pulses) {
			return
		}
	}
}

// play returns false if the player was stopped in the middle of the cue.
func (s *Player) play(pulses int) bool {
	s.mu.Lock()
	cfg := s.cfg
	quiet := s.quiet
	s.mu.Unlock()

	targets := s.actuators
	if quiet.Active() {
		targets = slices.DeleteFunc(slices.Clone(s.actuators), Actuator.Audible)
	}

	pattern := Pattern(pulses, cfg.PulseOn, cfg.PulseOff, cfg.MaxPulses)
	slog.Debug("Playing cue", "pulses", pulses, "actuators", len(targets), "length", Length(pattern))
	for i, d := range pattern {
		on := i%2 == 1
		if on {
			s.switchAll(targets, true)
		}
		ok := s.wait(d)
		if on {
			s.switchAll(targets, false)
		}
		if !ok {
			return false
		}
	}
	// keep back-to-back cues apart
	if !s.wait(cfg.PulseOff) {
		return false
	}

	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	return true
}

func (s *Player) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopChan:
		return false
	}
}

func (s *Player) switchAll(actuators []Actuator, on bool) {
	for _, a := range actuators {
		var err error
		if on {
			err = a.On()
		} else {
			err = a.Off()
		}
		if err != nil {
			slog.Error("Actuator failed", "actuator", a.Name(), "on", on, "error", err)
		}
	}
}
