package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	ctl "lautenbacher.net/gointerval/controller"
)

const maxHistory = 200

// Entry is one transition of a run: a new phase, a new series or a change
// of status.
type Entry struct {
	At    time.Time
	State ctl.RunState
}

func (e Entry) String() string {
	st := e.State
	switch st.Status {
	case ctl.Running:
		return fmt.Sprintf("%s %-8s %d / %d", e.At.Format("15:04:05"), st.Phase, st.Series, st.SeriesCount)
	default:
		return fmt.Sprintf("%s %s", e.At.Format("15:04:05"), stateLabel(st))
	}
}

// History keeps the most recent transitions, oldest first.
type History struct {
	mu      sync.Mutex
	entries deque.Deque[Entry]
	size    int
	last    ctl.RunState
	seen    bool
}

func NewHistory(size int) *History {
	h := &History{size: size}
	h.entries.Grow(size)
	return h
}

// Record adds st unless it only differs from the last recorded state in
// the remaining time. It reports whether st was added.
func (h *History) Record(st ctl.RunState, at time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen && st.Status == h.last.Status && st.Phase == h.last.Phase &&
		st.Series == h.last.Series && st.RunID == h.last.RunID {
		return false
	}
	h.seen = true
	h.last = st
	if h.entries.Len() == h.size {
		h.entries.PopFront()
	}
	h.entries.PushBack(Entry{At: at, State: st})
	return true
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries.Len()
}

// Lines returns up to n entries, newest first.
func (h *History) Lines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	n = min(n, h.entries.Len())
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, h.entries.At(h.entries.Len()-1-i).String())
	}
	return lines
}
