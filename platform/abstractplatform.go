package platform

import (
	"log/slog"
	"sync"
	"time"

	c "lautenbacher.net/gointerval/config"
	ctl "lautenbacher.net/gointerval/controller"
	seq "lautenbacher.net/gointerval/sequencer"
	u "lautenbacher.net/gointerval/util"
)

// Display is everything a platform renders for one state.
type Display struct {
	State    ctl.RunState
	Interval seq.Config
	Flash    bool
	// Changed is set when the state differs from the previous one in
	// status, phase or series.
	Changed bool
}

type AbstractPlatform struct {
	config          *c.Config
	commands        chan *Command
	displayFunc     func(Display)
	displayWg       sync.WaitGroup
	displayStopChan chan bool
	readyChan       chan bool
	shutdownMutex   sync.RWMutex
	isShuttingDown  bool
	history         *History
	flash           *u.AtomicEvent[bool]
}

func newAbstractPlatform(conf *c.Config, displayFunc func(Display)) *AbstractPlatform {
	return &AbstractPlatform{
		config:          conf,
		commands:        make(chan *Command, 8),
		displayFunc:     displayFunc,
		displayStopChan: make(chan bool),
		readyChan:       make(chan bool),
		history:         NewHistory(maxHistory),
		flash:           u.NewAtomicEvent(false),
	}
}

func (s *AbstractPlatform) Commands() <-chan *Command {
	return s.commands
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

// sendCommand hands cmd to the application. It gives up once the
// platform is stopping.
func (s *AbstractPlatform) sendCommand(cmd *Command) {
	slog.Debug("Command", "kind", cmd.Kind, "source", cmd.Source)
	select {
	case s.commands <- cmd:
	case <-s.displayStopChan:
	}
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *AbstractPlatform) startDisplayDriver(src StateSource) {
	s.displayWg.Add(1)
	go s.displayDriver(src)
}

func (s *AbstractPlatform) stopDisplayDriver() {
	s.setInShutdown()
	close(s.displayStopChan)
	s.displayWg.Wait()
}

// displayDriver redraws whenever the countdown published a new state or
// the visual cue switched. Bursts of updates collapse into one redraw.
func (s *AbstractPlatform) displayDriver(src StateSource) {
	defer s.displayWg.Done()
	s.render(src)
	for {
		select {
		case <-s.displayStopChan:
			slog.Info("Ending DisplayDriver go-routine...")
			return
		case <-src.Updates():
		case <-s.flash.Channel():
		}
		s.render(src)
	}
}

func (s *AbstractPlatform) render(src StateSource) {
	// a flash switched since the wakeup is drawn now, not again later
	d := Display{
		State:    src.Snapshot(),
		Interval: src.RunConfig(),
		Flash:    s.flash.Consume(),
	}
	d.Changed = s.history.Record(d.State, time.Now())

	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	if !s.isShuttingDown {
		s.displayFunc(d)
	}
}

// flashActuator is the visual cue of a screen based platform.
type flashActuator struct {
	flash *u.AtomicEvent[bool]
}

func (f *flashActuator) Name() string  { return "screen" }
func (f *flashActuator) Audible() bool { return false }

func (f *flashActuator) On() error {
	f.flash.Send(true)
	return nil
}

func (f *flashActuator) Off() error {
	f.flash.Send(false)
	return nil
}
