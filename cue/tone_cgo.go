//go:build cgo
// +build cgo

package cue

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	c "lautenbacher.net/gointerval/config"
)

var (
	paMutex sync.Mutex
	paUsers int
)

// Tone is an audible actuator playing a sine tone on the default output
// device.
type Tone struct {
	gen    *sine
	stream *portaudio.Stream
}

func NewTone(cfg c.AudioCueConfig) (*Tone, error) {
	paMutex.Lock()
	defer paMutex.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("can't initialize portaudio: %w", err)
		}
		slog.Info("Tone: PortAudio initialized.")
	}

	t := &Tone{gen: newSine(cfg.Frequency, cfg.SampleRate, cfg.Volume)}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(cfg.SampleRate), cfg.FramesPerBuffer, t.gen.fill)
	if err != nil {
		terminateLocked()
		return nil, fmt.Errorf("can't open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		terminateLocked()
		return nil, fmt.Errorf("can't start output stream: %w", err)
	}
	t.stream = stream
	paUsers++
	slog.Info("Tone", "frequency", cfg.Frequency, "sampleRate", cfg.SampleRate, "framesPerBuffer", cfg.FramesPerBuffer)
	return t, nil
}

func terminateLocked() {
	if paUsers > 0 {
		return
	}
	if err := portaudio.Terminate(); err != nil {
		slog.Error("Tone: failed to terminate portaudio", "error", err)
	}
}

func (t *Tone) Name() string  { return "tone" }
func (t *Tone) Audible() bool { return true }

func (t *Tone) On() error {
	t.gen.on.Store(true)
	return nil
}

func (t *Tone) Off() error {
	t.gen.on.Store(false)
	return nil
}

func (t *Tone) Close() error {
	t.gen.on.Store(false)
	var firstErr error
	if err := t.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := t.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	paMutex.Lock()
	defer paMutex.Unlock()
	paUsers--
	terminateLocked()
	return firstErr
}
