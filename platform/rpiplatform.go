package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"lautenbacher.net/gointerval/config"
	"lautenbacher.net/gointerval/cue"
	seq "lautenbacher.net/gointerval/sequencer"
)

// RaspberryPiPlatform runs headless: a push button toggles the run and a
// GPIO pin drives the vibration motor or buzzer. Progress goes to the log.
type RaspberryPiPlatform struct {
	*AbstractPlatform
	vibration      *gpioActuator
	button         rpio.Pin
	readButton     func() rpio.State
	buttonWg       sync.WaitGroup
	buttonStopChan chan bool
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	inst := &RaspberryPiPlatform{
		buttonStopChan: make(chan bool),
	}
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.rpiDisplayFunc)
	inst.vibration = newGpioActuator(rpio.Pin(conf.Hardware.VibrationPin), conf.Hardware.ActiveLow)
	inst.button = rpio.Pin(conf.Hardware.ButtonPin)
	inst.readButton = inst.button.Read
	return inst
}

func (s *RaspberryPiPlatform) Start(src StateSource) error {
	slog.Info("Initialise GPIO...", "vibration", s.config.Hardware.VibrationPin, "button", s.config.Hardware.ButtonPin)
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}

	s.vibration.pin.Output()
	if err := s.vibration.Off(); err != nil {
		return err
	}
	s.button.Input()
	s.button.PullUp()

	s.startDisplayDriver(src)

	s.buttonWg.Add(1)
	go s.buttonDriver()

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	close(s.buttonStopChan)
	s.buttonWg.Wait()
	s.stopDisplayDriver()

	if err := s.vibration.Off(); err != nil {
		slog.Error("Error switching off vibration", "error", err)
	}
	if err := rpio.Close(); err != nil {
		slog.Error("Error closing rpio", "error", err)
	}
}

func (s *RaspberryPiPlatform) Actuators() []cue.Actuator {
	return []cue.Actuator{s.vibration}
}

func (s *RaspberryPiPlatform) SetInterval(cfg seq.Config) {
	slog.Info("Next run", "prepare", cfg.PrepareSeconds, "exercise", cfg.ExerciseSeconds,
		"break", cfg.BreakSeconds, "series", cfg.SeriesCount,
		"seconds", seq.TotalSeconds(cfg))
}

// rpiDisplayFunc logs every transition; there is no screen.
func (s *RaspberryPiPlatform) rpiDisplayFunc(d Display) {
	if !d.Changed {
		return
	}
	slog.Info("State", "state", stateLabel(d.State), "series", seriesLabel(d.State),
		"remaining", formatRemaining(d.State.Remaining), "run", d.State.RunID)
}

func (s *RaspberryPiPlatform) buttonDriver() {
	defer s.buttonWg.Done()
	ticker := time.NewTicker(s.config.Hardware.ButtonPollDelay)
	defer ticker.Stop()

	btn := newDebouncer(s.config.Hardware.DebounceCount)
	for {
		select {
		case <-s.buttonStopChan:
			slog.Info("Ending ButtonDriver go-routine (RPi)")
			return
		case <-ticker.C:
			// pulled up, so pressed reads low
			if btn.update(s.readButton() == rpio.Low) {
				s.sendCommand(NewCommand(CmdToggle, "button", time.Now()))
			}
		}
	}
}

// debouncer turns raw button samples into presses. A level only counts
// once it has been read count times in a row.
type debouncer struct {
	count   int
	seen    int
	raw     bool
	pressed bool
}

func newDebouncer(count int) *debouncer {
	return &debouncer{count: max(count, 1)}
}

// update takes the next sample and reports whether it completed a press.
func (d *debouncer) update(pressed bool) bool {
	if pressed != d.raw {
		d.raw = pressed
		d.seen = 0
	}
	if d.seen < d.count {
		d.seen++
	}
	if d.seen < d.count || d.pressed == d.raw {
		return false
	}
	d.pressed = d.raw
	return d.pressed
}

// gpioActuator switches a single output pin.
type gpioActuator struct {
	pin       rpio.Pin
	activeLow bool
	write     func(rpio.State)
}

func newGpioActuator(pin rpio.Pin, activeLow bool) *gpioActuator {
	return &gpioActuator{pin: pin, activeLow: activeLow, write: pin.Write}
}

func (g *gpioActuator) Name() string  { return fmt.Sprintf("vibration(gpio%d)", g.pin) }
func (g *gpioActuator) Audible() bool { return false }

func (g *gpioActuator) On() error {
	g.write(g.level(true))
	return nil
}

func (g *gpioActuator) Off() error {
	g.write(g.level(false))
	return nil
}

func (g *gpioActuator) level(on bool) rpio.State {
	if on != g.activeLow {
		return rpio.High
	}
	return rpio.Low
}
