package connection

import (
	"log/slog"
	"math/rand/v2"
	"sync"
)

// processTracker correlates client-generated process ids with the
// backend's __process status updates. An id's callbacks are dropped once
// the backend reports StatusEnd for it.
type processTracker struct {
	logger *slog.Logger

	mu        sync.Mutex
	callbacks map[int64][]ProcessFunc
}

func newProcessTracker(logger *slog.Logger) *processTracker {
	return &processTracker{
		logger:    logger,
		callbacks: make(map[int64][]ProcessFunc),
	}
}

func (p *processTracker) add(id int64, fn ProcessFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks[id] = append(p.callbacks[id], fn)
}

// notify runs every callback registered for update.ID with its status.
func (p *processTracker) notify(update ProcessUpdate) {
	p.mu.Lock()
	fns := append([]ProcessFunc(nil), p.callbacks[update.ID]...)
	if update.Status == StatusEnd {
		delete(p.callbacks, update.ID)
	}
	p.mu.Unlock()

	if len(fns) == 0 {
		p.logger.Debug("process update for unknown id", "id", update.ID, "status", update.Status)
		return
	}

	for _, fn := range fns {
		p.call(fn, update)
	}
}

func (p *processTracker) call(fn ProcessFunc, update ProcessUpdate) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("process callback panicked",
				"id", update.ID,
				"status", update.Status,
				"panic", r,
			)
		}
	}()
	fn(update.Status)
}

// tracked returns the number of ids with registered callbacks.
func (p *processTracker) tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}

// NewProcessID returns a random correlation id for an action that starts
// backend work.
func NewProcessID() int64 {
	return rand.Int64N(1<<31-1) + 1
}
