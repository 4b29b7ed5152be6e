package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxSessions bounds the number of windows held in memory.
const DefaultMaxSessions = 1024

// hydrateTimeout bounds a store load shared by concurrent Get calls.
const hydrateTimeout = 10 * time.Second

// Sessions resolves session IDs to windows.
type Sessions struct {
	windows *lru.Cache[string, *Window]
	group   singleflight.Group
	store   Store
	k       int
	logger  *zap.Logger
}

// NewSessions creates a session table. store may be nil for process-only memory.
func NewSessions(k, maxSessions int, store Store, logger *zap.Logger) (*Sessions, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if k <= 0 {
		k = DefaultWindowSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "memory_sessions"))

	cache, err := lru.NewWithEvict[string, *Window](maxSessions, func(id string, _ *Window) {
		logger.Debug("session evicted", zap.String("session_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Sessions{windows: cache, store: store, k: k, logger: logger}, nil
}

// Get returns the window for sessionID, hydrating it from the store on a
// miss. Concurrent misses for one ID share a single load; the load is
// detached from the first caller's cancellation so a client that gives up
// does not fail the others waiting on it.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*Window, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if w, ok := s.windows.Get(sessionID); ok {
		return w, nil
	}

	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		if w, ok := s.windows.Get(sessionID); ok {
			return w, nil
		}
		opts := []WindowOption{WithLogger(s.logger)}
		if s.store != nil {
			opts = append(opts, WithStore(s.store, sessionID))
		}
		w := NewWindow(s.k, opts...)
		if s.store != nil {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
			defer cancel()
			exchanges, err := s.store.Load(loadCtx, sessionID)
			if err != nil {
				return nil, err
			}
			w.load(exchanges)
		}
		s.windows.Add(sessionID, w)
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Window), nil
}

// Peek returns a cached window without hydrating.
func (s *Sessions) Peek(sessionID string) (*Window, bool) {
	return s.windows.Peek(sessionID)
}

// Delete drops a session from memory and from the store.
func (s *Sessions) Delete(ctx context.Context, sessionID string) error {
	s.windows.Remove(sessionID)
	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}

// Len returns the number of cached windows.
func (s *Sessions) Len() int { return s.windows.Len() }
