package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	seq "lautenbacher.net/gointerval/sequencer"
)

const CONFILE = "config.yml"

type Config struct {
	RealHW     bool           `yaml:"-" json:"-"`
	Configfile string         `yaml:"-" json:"-"`
	Interval   seq.Config     `yaml:"Interval"`
	Cue        CueConfig      `yaml:"Cue"`
	Hardware   HardwareConfig `yaml:"Hardware"`
	Web        WebConfig      `yaml:"Web"`
	Logging    LoggingConfig  `yaml:"Logging"`
}

// CueConfig describes how a cue of n pulses is played on the actuators.
type CueConfig struct {
	PulseOn    time.Duration    `yaml:"PulseOn" json:"PulseOn"`
	PulseOff   time.Duration    `yaml:"PulseOff" json:"PulseOff"`
	MaxPulses  int              `yaml:"MaxPulses" json:"MaxPulses"`
	QueueSize  int              `yaml:"QueueSize" json:"QueueSize"`
	Visual     bool             `yaml:"Visual" json:"Visual"`
	Audio      AudioCueConfig   `yaml:"Audio" json:"Audio"`
	QuietHours QuietHoursConfig `yaml:"QuietHours" json:"QuietHours"`
}

type AudioCueConfig struct {
	Enabled         bool    `yaml:"Enabled" json:"Enabled"`
	SampleRate      int     `yaml:"SampleRate" json:"SampleRate"`
	FramesPerBuffer int     `yaml:"FramesPerBuffer" json:"FramesPerBuffer"`
	Frequency       float64 `yaml:"Frequency" json:"Frequency"`
	Volume          float64 `yaml:"Volume" json:"Volume"`
}

// QuietHoursConfig mutes audible actuators between sunset and sunrise at
// the given location.
type QuietHoursConfig struct {
	Enabled   bool    `yaml:"Enabled" json:"Enabled"`
	Latitude  float64 `yaml:"Latitude" json:"Latitude"`
	Longitude float64 `yaml:"Longitude" json:"Longitude"`
}

// HardwareConfig is only used when running on the Raspberry Pi.
type HardwareConfig struct {
	VibrationPin    int           `yaml:"VibrationPin"`
	ActiveLow       bool          `yaml:"ActiveLow"`
	ButtonPin       int           `yaml:"ButtonPin"`
	ButtonPollDelay time.Duration `yaml:"ButtonPollDelay"`
	DebounceCount   int           `yaml:"DebounceCount"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Address string `yaml:"Address"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// Default returns the configuration used for every field the config file
// leaves out.
func Default() Config {
	return Config{
		Interval: seq.DefaultConfig(),
		Cue: CueConfig{
			PulseOn:   200 * time.Millisecond,
			PulseOff:  100 * time.Millisecond,
			MaxPulses: 4,
			QueueSize: 8,
			Visual:    true,
			Audio: AudioCueConfig{
				SampleRate:      44100,
				FramesPerBuffer: 512,
				Frequency:       880,
				Volume:          0.5,
			},
		},
		Hardware: HardwareConfig{
			VibrationPin:    18,
			ButtonPin:       23,
			ButtonPollDelay: 10 * time.Millisecond,
			DebounceCount:   3,
		},
		Web: WebConfig{Address: ":8080"},
		Logging: LoggingConfig{
			TUI: LogConfig{Level: "INFO", Format: "text"},
			HW:  LogConfig{Level: "INFO", Format: "json"},
		},
	}
}

// ReadConfig decodes cfile on top of the defaults and validates the
// result.
func ReadConfig(cfile string, realhw bool) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.RealHW = realhw
	conf.Configfile = cfile

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

// WriteConfig stores conf as YAML in cfile.
func WriteConfig(cfile string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("can't encode config: %w", err)
	}
	if err := os.WriteFile(cfile, data, 0o644); err != nil {
		return fmt.Errorf("can't write config file %s: %w", cfile, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Interval.Validate(); err != nil {
		return fmt.Errorf("Interval: %w", err)
	}
	if err := c.Cue.Validate(); err != nil {
		return err
	}
	if c.RealHW {
		if err := c.Hardware.Validate(); err != nil {
			return err
		}
	}
	if c.Web.Enabled && strings.TrimSpace(c.Web.Address) == "" {
		return fmt.Errorf("Web.Address must be set when the web API is enabled")
	}
	for name, lc := range map[string]LogConfig{"TUI": c.Logging.TUI, "HW": c.Logging.HW} {
		switch strings.ToLower(lc.Format) {
		case "", "text", "json":
		default:
			return fmt.Errorf("Logging.%s.Format must be text or json, got %q", name, lc.Format)
		}
	}
	return nil
}

func (c *CueConfig) Validate() error {
	if c.PulseOn <= 0 {
		return fmt.Errorf("Cue.PulseOn must be positive, got %v", c.PulseOn)
	}
	if c.PulseOff < 0 {
		return fmt.Errorf("Cue.PulseOff must be non-negative, got %v", c.PulseOff)
	}
	if c.MaxPulses < 1 || c.MaxPulses > 8 {
		return fmt.Errorf("Cue.MaxPulses must be between 1 and 8, got %d", c.MaxPulses)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("Cue.QueueSize must be positive, got %d", c.QueueSize)
	}
	if c.Audio.Enabled {
		if c.Audio.SampleRate <= 0 || c.Audio.FramesPerBuffer <= 0 {
			return fmt.Errorf("Cue.Audio.SampleRate and FramesPerBuffer must be positive")
		}
		if c.Audio.Frequency < 20 || c.Audio.Frequency > 20000 {
			return fmt.Errorf("Cue.Audio.Frequency must be between 20 and 20000, got %v", c.Audio.Frequency)
		}
		if c.Audio.Frequency*2 > float64(c.Audio.SampleRate) {
			return fmt.Errorf("Cue.Audio.Frequency %v is above the Nyquist limit of SampleRate %d", c.Audio.Frequency, c.Audio.SampleRate)
		}
		if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
			return fmt.Errorf("Cue.Audio.Volume must be between 0 and 1, got %v", c.Audio.Volume)
		}
	}
	if c.QuietHours.Enabled {
		if c.QuietHours.Latitude < -90 || c.QuietHours.Latitude > 90 {
			return fmt.Errorf("Cue.QuietHours.Latitude must be between -90 and 90, got %v", c.QuietHours.Latitude)
		}
		if c.QuietHours.Longitude < -180 || c.QuietHours.Longitude > 180 {
			return fmt.Errorf("Cue.QuietHours.Longitude must be between -180 and 180, got %v", c.QuietHours.Longitude)
		}
	}
	return nil
}

func (h *HardwareConfig) Validate() error {
	for name, pin := range map[string]int{"VibrationPin": h.VibrationPin, "ButtonPin": h.ButtonPin} {
		if pin < 0 || pin > 27 {
			return fmt.Errorf("Hardware.%s must be between 0 and 27, got %d", name, pin)
		}
	}
	if h.VibrationPin == h.ButtonPin {
		return fmt.Errorf("Hardware.VibrationPin and ButtonPin must differ")
	}
	if h.ButtonPollDelay <= 0 {
		return fmt.Errorf("Hardware.ButtonPollDelay must be positive, got %v", h.ButtonPollDelay)
	}
	if h.DebounceCount < 1 {
		return fmt.Errorf("Hardware.DebounceCount must be positive, got %d", h.DebounceCount)
	}
	return nil
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
