package platform

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/gointerval/config"
	ctl "lautenbacher.net/gointerval/controller"
	"lautenbacher.net/gointerval/cue"
	"lautenbacher.net/gointerval/logging"
	seq "lautenbacher.net/gointerval/sequencer"
)

const progressWidth = 60

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp     *tview.Application
	intro        *tview.TextView
	status       *tview.TextView
	historyView  *tview.TextView
	form         *tview.Form
	logView      *tview.TextView
	ossignalChan chan os.Signal
	logFlushOnce sync.Once
	fields       map[string]*tview.InputField
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		ossignalChan: ossignalchan,
		fields:       make(map[string]*tview.InputField, 4),
	}
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.DisplayState)
	return inst
}

func (s *TUIPlatform) Start(src StateSource) error {
	s.initTUI(src.RunConfig())
	s.startDisplayDriver(src)
	return nil
}

func (s *TUIPlatform) Stop() {
	s.stopDisplayDriver()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) Actuators() []cue.Actuator {
	if !s.config.Cue.Visual {
		return nil
	}
	return []cue.Actuator{&flashActuator{flash: s.flash}}
}

// SetInterval fills the settings form.
func (s *TUIPlatform) SetInterval(cfg seq.Config) {
	if s.tviewapp == nil {
		return
	}
	s.tviewapp.QueueUpdateDraw(func() {
		s.setFields(cfg)
	})
}

// DisplayState queues a redraw of the status and history panes.
func (s *TUIPlatform) DisplayState(d Display) {
	text := statusText(d)
	var history string
	if d.Changed {
		history = strings.Join(s.history.Lines(maxHistory), "\n")
	}
	s.tviewapp.QueueUpdateDraw(func() {
		s.status.SetText(text)
		if d.Flash {
			s.status.SetBackgroundColor(tcell.NewRGBColor(90, 90, 30))
		} else {
			s.status.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))
		}
		if d.Changed {
			s.historyView.SetText(history)
		}
		if d.State.Status == ctl.Running {
			s.form.SetTitle(" Settings (next run) ")
		} else {
			s.form.SetTitle(" Settings ")
		}
	})
}

// statusText renders the status pane.
func statusText(d Display) string {
	st := d.State
	return fmt.Sprintf("\n[::b]%s[::-]\n\n[#ffffff::b]%s[-::-]\n\n%s\n\n%s",
		stateLabel(st),
		formatRemaining(st.Remaining),
		seriesLabel(st),
		renderProgress(d.Interval, st, progressWidth))
}

func (s *TUIPlatform) getIntroText() string {
	line1 := "Hit [#ff0000]s[-] to start/stop, [#ff0000]e[-] to edit settings, [#ff0000]Esc[-] to leave them"
	line2 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s", line1, line2)
}

func (s *TUIPlatform) initTUI(cfg seq.Config) {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOINTERVAL ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Status Pane ---
	s.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.status.SetBorder(true)
	s.status.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- History Pane ---
	s.historyView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	s.historyView.SetBorder(true).SetTitle(" History ").SetTitleColor(tcell.ColorLightBlue)
	s.historyView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Settings Form ---
	s.form = tview.NewForm()
	for _, name := range []string{"Prepare", "Exercise", "Break", "Series"} {
		field := tview.NewInputField().
			SetLabel(fmt.Sprintf("%-9s", name)).
			SetFieldWidth(6).
			SetAcceptanceFunc(tview.InputFieldInteger)
		s.fields[name] = field
		s.form.AddFormItem(field)
	}
	s.setFields(cfg)
	s.form.AddButton("Apply", s.applyForm)
	s.form.AddButton("Start/Stop", func() {
		s.sendCommand(NewCommand(CmdToggle, "tui", time.Now()))
	})
	s.form.SetCancelFunc(func() {
		s.tviewapp.SetFocus(s.logView)
	})
	s.form.SetBorder(true).SetTitle(" Settings ").SetTitleColor(tcell.ColorLightBlue)
	s.form.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	top := tview.NewFlex().
		AddItem(s.status, 0, 2, false).
		AddItem(s.historyView, 0, 1, false).
		AddItem(s.form, 28, 0, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 4, 0, false).
		AddItem(top, 13, 0, false).
		AddItem(s.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			logging.SetOutput(logWriter)
			close(s.readyChan)
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			s.tviewapp.Stop()
			s.ossignalChan <- os.Interrupt
			return nil
		}
		// keys belong to the form while it has focus
		if s.form.HasFocus() {
			return event
		}
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case 's', 'S', ' ':
				s.sendCommand(NewCommand(CmdToggle, "tui", time.Now()))
				return nil
			case 'e', 'E':
				s.tviewapp.SetFocus(s.form)
				return nil
			case 'q', 'Q':
				s.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				s.ossignalChan <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// setFields must run on the TUI goroutine once the TUI is up.
func (s *TUIPlatform) setFields(cfg seq.Config) {
	s.fields["Prepare"].SetText(strconv.Itoa(cfg.PrepareSeconds))
	s.fields["Exercise"].SetText(strconv.Itoa(cfg.ExerciseSeconds))
	s.fields["Break"].SetText(strconv.Itoa(cfg.BreakSeconds))
	s.fields["Series"].SetText(strconv.Itoa(cfg.SeriesCount))
}

func (s *TUIPlatform) applyForm() {
	cfg, err := parseInterval(
		s.fields["Prepare"].GetText(),
		s.fields["Exercise"].GetText(),
		s.fields["Break"].GetText(),
		s.fields["Series"].GetText())
	if err != nil {
		slog.Error("Settings not applied", "error", err)
		return
	}
	cmd := NewCommand(CmdConfigure, "tui", time.Now())
	cmd.Interval = cfg
	s.sendCommand(cmd)
	s.tviewapp.SetFocus(s.logView)
}

// parseInterval reads the settings form. Empty or non-numeric fields are
// rejected here; range checks are left to the controller.
func parseInterval(prepare, exercise, brk, series string) (seq.Config, error) {
	var cfg seq.Config
	for _, f := range []struct {
		name  string
		text  string
		value *int
	}{
		{"Prepare", prepare, &cfg.PrepareSeconds},
		{"Exercise", exercise, &cfg.ExerciseSeconds},
		{"Break", brk, &cfg.BreakSeconds},
		{"Series", series, &cfg.SeriesCount},
	} {
		v, err := strconv.Atoi(strings.TrimSpace(f.text))
		if err != nil {
			return seq.Config{}, fmt.Errorf("%s: %q is not a number", f.name, f.text)
		}
		*f.value = v
	}
	return cfg, nil
}
