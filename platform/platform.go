package platform

import (
	"time"

	ctl "lautenbacher.net/gointerval/controller"
	"lautenbacher.net/gointerval/cue"
	seq "lautenbacher.net/gointerval/sequencer"
)

// Platform abstracts the real hardware from the TUI simulation.
type Platform interface {
	// Start initializes the platform (e.g., opens GPIO, or starts the
	// TUI) and begins displaying states from src.
	Start(src StateSource) error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once the platform can display and take input.
	Ready() <-chan bool

	// Commands delivers the user's requests (button, keys, forms).
	Commands() <-chan *Command

	// Actuators returns the platform's own cue actuators.
	Actuators() []cue.Actuator

	// SetInterval shows the configuration the next run will use.
	SetInterval(cfg seq.Config)
}

// StateSource is the running countdown as seen by a platform.
// *controller.Controller implements it.
type StateSource interface {
	Updates() <-chan struct{}
	Snapshot() ctl.RunState
	RunConfig() seq.Config
}

type CommandKind int

const (
	// CmdToggle starts a run unless one is in progress, in which case it
	// stops it.
	CmdToggle CommandKind = iota
	CmdStart
	CmdStop
	// CmdConfigure stores Command.Interval for the next run.
	CmdConfigure
)

func (k CommandKind) String() string {
	switch k {
	case CmdToggle:
		return "toggle"
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdConfigure:
		return "configure"
	}
	return "unknown"
}

// Command is a user request.
type Command struct {
	Kind      CommandKind
	Interval  seq.Config
	Source    string
	Timestamp time.Time
}

// NewCommand creates a new Command instance.
func NewCommand(kind CommandKind, source string, time time.Time) *Command {
	inst := Command{
		Kind:      kind,
		Source:    source,
		Timestamp: time,
	}
	return &inst
}
