package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWindowSize is k when none is configured.
const DefaultWindowSize = 5

// Window holds the last k exchanges of a session.
//
// Appends to one window are serialised through persistence, so the store
// receives exchanges in the same order the window holds them. Readers only
// take mu and never wait on the store.
type Window struct {
	persistMu sync.Mutex
	mu        sync.Mutex
	k         int
	exchanges []Exchange

	sessionID string
	store     Store
	now       func() time.Time
	logger    *zap.Logger
}

// WindowOption configures a Window.
type WindowOption func(*Window)

// WithStore persists every appended exchange under sessionID.
func WithStore(store Store, sessionID string) WindowOption {
	return func(w *Window) {
		w.store = store
		w.sessionID = sessionID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) WindowOption {
	return func(w *Window) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) WindowOption {
	return func(w *Window) { w.now = now }
}

// NewWindow creates an empty window of size k (DefaultWindowSize if k <= 0).
func NewWindow(k int, opts ...WindowOption) *Window {
	if k <= 0 {
		k = DefaultWindowSize
	}
	w := &Window{
		k:      k,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "memory_window"))
	return w
}

// K returns the window size.
func (w *Window) K() int { return w.k }

// Len returns the number of held exchanges.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.exchanges)
}

// Snapshot returns a copy of the held exchanges, oldest first.
func (w *Window) Snapshot() []Exchange {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Exchange, len(w.exchanges))
	copy(out, w.exchanges)
	return out
}

// Append adds ex, evicting the oldest exchanges beyond k, then persists it
// if a store is attached. A persistence failure is returned but the
// in-memory append stands.
func (w *Window) Append(ctx context.Context, ex Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = w.now()
	}

	w.persistMu.Lock()
	defer w.persistMu.Unlock()

	w.mu.Lock()
	w.exchanges = append(w.exchanges, ex)
	if over := len(w.exchanges) - w.k; over > 0 {
		// Copy into a fresh slice so the evicted prefix can be collected.
		kept := make([]Exchange, w.k)
		copy(kept, w.exchanges[over:])
		w.exchanges = kept
	}
	w.mu.Unlock()

	if w.store == nil {
		return nil
	}
	if err := w.store.Append(ctx, w.sessionID, ex, w.k); err != nil {
		w.logger.Warn("persist exchange failed",
			zap.String("session_id", w.sessionID),
			zap.Error(err))
		return err
	}
	return nil
}

// load replaces the contents with the newest k of exchanges. Used only
// while hydrating, before the window is shared.
func (w *Window) load(exchanges []Exchange) {
	if len(exchanges) > w.k {
		exchanges = exchanges[len(exchanges)-w.k:]
	}
	w.mu.Lock()
	w.exchanges = append([]Exchange(nil), exchanges...)
	w.mu.Unlock()
}

// Clear drops all exchanges held in memory.
func (w *Window) Clear() {
	w.mu.Lock()
	w.exchanges = nil
	w.mu.Unlock()
}
