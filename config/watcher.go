package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file whenever it is written and delivers
// every configuration that reads and validates.
type Watcher struct {
	cfile    string
	realhw   bool
	settle   time.Duration
	watcher  *fsnotify.Watcher
	changes  chan *Config
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher watches the directory of cfile, so editors that replace the
// file instead of writing it in place are noticed as well.
func NewWatcher(cfile string, realhw bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("can't create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(cfile)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("can't watch %s: %w", cfile, err)
	}
	return &Watcher{
		cfile:    cfile,
		realhw:   realhw,
		settle:   100 * time.Millisecond,
		watcher:  fw,
		changes:  make(chan *Config, 1),
		stopChan: make(chan struct{}),
	}, nil
}

// Changes delivers reloaded configurations. Only the newest one is kept
// if the reader falls behind.
func (s *Watcher) Changes() <-chan *Config {
	return s.changes
}

func (s *Watcher) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Watcher) Stop() {
	close(s.stopChan)
	s.watcher.Close()
	s.wg.Wait()
}

func (s *Watcher) run() {
	defer s.wg.Done()

	// A single save often shows up as several events; wait for them to
	// settle before reading the file.
	var settle <-chan time.Time
	target := filepath.Clean(s.cfile)
	for {
		select {
		case <-s.stopChan:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle = time.After(s.settle)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		case <-settle:
			settle = nil
			s.reload()
		}
	}
}

func (s *Watcher) reload() {
	conf, err := ReadConfig(s.cfile, s.realhw)
	if err != nil {
		slog.Error("Ignoring changed config file", "file", s.cfile, "error", err)
		return
	}
	slog.Info("Config file changed", "file", s.cfile)
	for {
		select {
		case s.changes <- conf:
			return
		default:
		}
		// drop the stale one nobody picked up yet
		select {
		case <-s.changes:
		default:
		}
	}
}
