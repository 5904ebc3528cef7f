package config

import seq "lautenbacher.net/gointerval/sequencer"

// RuntimeConfig is the subset of the configuration that may be changed
// at runtime through the web API. Hardware, web and logging settings are
// left out.
type RuntimeConfig struct {
	Interval seq.Config `yaml:"Interval" json:"Interval"`
	Cue      CueConfig  `yaml:"Cue" json:"Cue"`
}

func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{Interval: c.Interval, Cue: c.Cue}
}

// Merge copies the runtime settings into c.
func (c *Config) Merge(rc RuntimeConfig) {
	c.Interval = rc.Interval
	c.Cue = rc.Cue
}
