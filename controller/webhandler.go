package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Runner is what the web API drives. *Controller implements it; an
// application may wrap it to apply pending configuration before a start.
type Runner interface {
	Start() error
	Stop()
	Snapshot() RunState
}

// StatusHandler serves the current RunState as JSON on GET.
func StatusHandler(ctrl Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ctrl.Snapshot()); err != nil {
			slog.Error("Failed to encode run state to JSON", "error", err)
			http.Error(w, "Failed to serialize run state", http.StatusInternalServerError)
		}
	}
}

// StartHandler starts a run on POST. A run already in progress yields
// 409 Conflict.
func StartHandler(ctrl Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		slog.Info("Handling POST /api/start request")
		if err := ctrl.Start(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrPreconditionViolation) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeState(w, ctrl)
	}
}

// StopHandler stops a running countdown on POST. Stopping an idle or
// finished controller succeeds without effect.
func StopHandler(ctrl Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		slog.Info("Handling POST /api/stop request")
		ctrl.Stop()
		writeState(w, ctrl)
	}
}

func writeState(w http.ResponseWriter, ctrl Runner) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ctrl.Snapshot()); err != nil {
		slog.Error("Failed to encode run state to JSON", "error", err)
	}
}
