//go:build !cgo
// +build !cgo

package cue

import (
	"errors"
	"log/slog"

	c "lautenbacher.net/gointerval/config"
)

// Tone is a stub for builds without cgo; it can never be created.
type Tone struct{}

func NewTone(cfg c.AudioCueConfig) (*Tone, error) {
	slog.Warn("Tone: audio support is disabled in this build (requires CGO).")
	return nil, errors.New("audio cues require a cgo build")
}

func (t *Tone) Name() string  { return "tone" }
func (t *Tone) Audible() bool { return true }
func (t *Tone) On() error     { return nil }
func (t *Tone) Off() error    { return nil }
func (t *Tone) Close() error  { return nil }
