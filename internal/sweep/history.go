package sweep

import (
	"sync"

	"github.com/connect-hub/backend/internal/models"
)

// DefaultHistorySize is how many runs History keeps by default.
const DefaultHistorySize = 48

// History keeps the most recent runs in a fixed-size ring.
type History struct {
	mu   sync.RWMutex
	runs []*models.SweepRun
	next int
	full bool
}

// NewHistory creates a ring holding up to size runs.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{runs: make([]*models.SweepRun, size)}
}

// Add records a run, evicting the oldest when full.
func (h *History) Add(run *models.SweepRun) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[h.next] = run
	h.next = (h.next + 1) % len(h.runs)
	if h.next == 0 {
		h.full = true
	}
}

// List returns the recorded runs, newest first.
func (h *History) List() []*models.SweepRun {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.next
	if h.full {
		n = len(h.runs)
	}
	out := make([]*models.SweepRun, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.runs[(h.next-i+len(h.runs))%len(h.runs)])
	}
	return out
}

// Last returns the newest run, or nil.
func (h *History) Last() *models.SweepRun {
	list := h.List()
	if len(list) == 0 {
		return nil
	}
	return list[0]
}
