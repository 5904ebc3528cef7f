package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	c "lautenbacher.net/gointerval/config"
	ctl "lautenbacher.net/gointerval/controller"
	"lautenbacher.net/gointerval/cue"
	"lautenbacher.net/gointerval/logging"
	pl "lautenbacher.net/gointerval/platform"
	seq "lautenbacher.net/gointerval/sequencer"
)

type App struct {
	ossignal   chan os.Signal
	cfile      string
	realp      bool
	conf       *c.Config
	platform   pl.Platform
	ctrl       *ctl.Controller
	player     *cue.Player
	closers    []io.Closer
	watcher    *c.Watcher
	server     *http.Server
	reloads    chan *c.Config
	stopsignal chan struct{}
	shutdownWg sync.WaitGroup
	// interval configuration that arrived during a run; guarded by
	// pendingMu
	pendingMu sync.Mutex
	pending   *seq.Config
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal: ossignal,
		reloads:  make(chan *c.Config, 1),
	}
}

func main() {
	realp := flag.Bool("real", false, "Running on real hardware")
	cfile := flag.String("config", c.CONFILE, "Config file to use")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	if err := app.initialise(*cfile, *realp); err != nil {
		slog.Error("Failed to start", "error", err)
		logging.Close()
		os.Exit(1)
	}
	app.signalLoop()
	app.shutdown()
	if err := logging.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Error closing log:", err)
	}
}

func (s *App) initialise(cfile string, realp bool) error {
	conf, err := c.ReadConfig(cfile, realp)
	if err != nil {
		return err
	}
	s.conf = conf
	s.cfile = cfile
	s.realp = realp

	lc := conf.Logging.TUI
	if realp {
		lc = conf.Logging.HW
	}
	// the TUI owns the terminal, so hold output back until its log pane exists
	if err := logging.Init(!realp, logging.Options{Level: lc.Level, Format: lc.Format, File: lc.File}); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	slog.Info("Starting gointerval", "config", cfile, "real", realp)

	if realp {
		s.platform = pl.NewRaspberryPiPlatform(conf)
	} else {
		s.platform = pl.NewTUIPlatform(conf, s.ossignal)
	}

	s.player = cue.NewPlayer(conf.Cue, s.actuators()...)
	s.ctrl = ctl.New(nil, ctl.ObserverFuncs{Tick: s.onTick, Cue: s.player.Emit},
		ctl.Options{Logger: slog.Default().With("component", "controller")})
	if err := s.ctrl.Configure(conf.Interval); err != nil {
		return err
	}
	s.player.Start()

	if err := s.platform.Start(s.ctrl); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-s.platform.Ready()
	s.platform.SetInterval(s.ctrl.Config())

	if w, err := c.NewWatcher(cfile, realp); err != nil {
		slog.Warn("Config file will not be watched", "error", err)
	} else {
		s.watcher = w
		s.watcher.Start()
	}

	if conf.Web.Enabled {
		s.startWebServer(conf.Web.Address)
	}

	s.stopsignal = make(chan struct{})
	s.shutdownWg.Add(1)
	go s.stateManager()
	return nil
}

// actuators collects the platform's own actuators and, if enabled, the
// tone on the default audio device.
func (s *App) actuators() []cue.Actuator {
	acts := s.platform.Actuators()
	if s.conf.Cue.Audio.Enabled {
		tone, err := cue.NewTone(s.conf.Cue.Audio)
		if err != nil {
			slog.Warn("Audio cues disabled", "error", err)
		} else {
			acts = append(acts, tone)
			s.closers = append(s.closers, tone)
		}
	}
	for _, a := range acts {
		slog.Info("Cue actuator", "name", a.Name(), "audible", a.Audible())
	}
	return acts
}

func (s *App) onTick(remaining int) {
	slog.Debug("Tick", "remaining", remaining)
}

// signalLoop returns on SIGINT or SIGTERM. SIGHUP (also sent by the TUI's
// reload key) re-reads the config file.
func (s *App) signalLoop() {
	for sig := range s.ossignal {
		if sig != syscall.SIGHUP {
			slog.Info("Shutting down...", "signal", sig)
			return
		}
		slog.Info("Reloading config...", "file", s.cfile)
		conf, err := c.ReadConfig(s.cfile, s.realp)
		if err != nil {
			slog.Error("Reload failed, keeping current config", "error", err)
			continue
		}
		select {
		case s.reloads <- conf:
		default:
			slog.Warn("Reload already in progress")
		}
	}
}

// stateManager serializes everything that changes the run: commands from
// the platform, config file changes and reloads.
func (s *App) stateManager() {
	defer s.shutdownWg.Done()

	var changes <-chan *c.Config
	if s.watcher != nil {
		changes = s.watcher.Changes()
	}
	for {
		select {
		case <-s.stopsignal:
			return
		case cmd := <-s.platform.Commands():
			s.handleCommand(cmd)
		case conf := <-changes:
			s.applyConfig(conf)
		case conf := <-s.reloads:
			s.applyConfig(conf)
		}
	}
}

func (s *App) handleCommand(cmd *pl.Command) {
	switch cmd.Kind {
	case pl.CmdToggle:
		if s.ctrl.Snapshot().Status == ctl.Running {
			s.Stop()
		} else {
			s.logStart(s.Start())
		}
	case pl.CmdStart:
		s.logStart(s.Start())
	case pl.CmdStop:
		s.Stop()
	case pl.CmdConfigure:
		s.configure(cmd.Interval)
	default:
		slog.Warn("Unknown command", "kind", cmd.Kind)
	}
}

func (s *App) logStart(err error) {
	if err != nil {
		slog.Error("Can't start run", "error", err)
	}
}

// applyConfig takes over what can change at runtime. Hardware, web and
// logging settings need a restart.
func (s *App) applyConfig(conf *c.Config) {
	s.player.SetConfig(conf.Cue)
	s.configure(conf.Interval)
	if conf.Hardware != s.conf.Hardware || conf.Web != s.conf.Web || conf.Logging != s.conf.Logging ||
		conf.Cue.Visual != s.conf.Cue.Visual || conf.Cue.Audio.Enabled != s.conf.Cue.Audio.Enabled {
		slog.Warn("Some changed settings only take effect after a restart")
	}
	s.conf = conf
}

// configure stores cfg for the next run. During a run it is kept pending
// and applied by the next Start.
func (s *App) configure(cfg seq.Config) {
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid interval configuration", "error", err)
		return
	}
	s.pendingMu.Lock()
	err := s.ctrl.Configure(cfg)
	switch {
	case err == nil:
		s.pending = nil
		slog.Info("Interval configuration applied")
	case errors.Is(err, ctl.ErrPreconditionViolation):
		s.pending = &cfg
		slog.Info("Run in progress, interval configuration applies to the next run")
	default:
		slog.Error("Interval configuration rejected", "error", err)
	}
	s.pendingMu.Unlock()
	s.platform.SetInterval(cfg)
}

// Start applies a pending configuration and begins a new run. Together
// with Stop and Snapshot it lets the web API drive the app.
func (s *App) Start() error {
	s.pendingMu.Lock()
	if s.pending != nil {
		if err := s.ctrl.Configure(*s.pending); err == nil {
			s.pending = nil
		}
	}
	s.pendingMu.Unlock()
	return s.ctrl.Start()
}

func (s *App) Stop() {
	s.ctrl.Stop()
}

func (s *App) Snapshot() ctl.RunState {
	return s.ctrl.Snapshot()
}

func (s *App) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/config", c.ConfigHandler(s.cfile))
	mux.Handle("/api/status", ctl.StatusHandler(s))
	mux.Handle("/api/start", ctl.StartHandler(s))
	mux.Handle("/api/stop", ctl.StopHandler(s))
	return mux
}

func (s *App) startWebServer(addr string) {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.newMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Web API listening", "address", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API failed", "error", err)
		}
	}()
}

func (s *App) shutdown() {
	close(s.stopsignal)
	s.shutdownWg.Wait()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Error("Error stopping web API", "error", err)
		}
		cancel()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}

	s.ctrl.Stop()
	s.player.Stop()
	for _, cl := range s.closers {
		if err := cl.Close(); err != nil {
			slog.Error("Error closing actuator", "error", err)
		}
	}
	s.platform.Stop()
	slog.Info("Shutdown complete")
}

// Local Variables:
// compile-command: "go build"
// End:
