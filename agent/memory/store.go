package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists session windows.
type Store interface {
	// Load returns the stored exchanges of a session, oldest first.
	Load(ctx context.Context, sessionID string) ([]Exchange, error)
	// Append stores ex and trims the session to its newest keep exchanges.
	Append(ctx context.Context, sessionID string, ex Exchange, keep int) error
	// Delete drops a session.
	Delete(ctx context.Context, sessionID string) error
}

// InMemoryStore is a process-local Store, for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Exchange
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]Exchange)}
}

func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]Exchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Exchange(nil), s.sessions[sessionID]...), nil
}

func (s *InMemoryStore) Append(ctx context.Context, sessionID string, ex Exchange, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.sessions[sessionID], ex)
	if keep > 0 && len(list) > keep {
		list = append([]Exchange(nil), list[len(list)-keep:]...)
	}
	s.sessions[sessionID] = list
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ListBackend is the subset of internal/cache.Manager RedisStore needs.
type ListBackend interface {
	AppendCapped(ctx context.Context, key, value string, keep int, ttl time.Duration) error
	Range(ctx context.Context, key string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps each session as a Redis list of JSON exchanges.
type RedisStore struct {
	backend ListBackend
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRedisStore creates a store over backend. Keys are prefix+sessionID;
// ttl > 0 expires idle sessions.
func NewRedisStore(backend ListBackend, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "agentloop:memory:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		backend: backend,
		prefix:  prefix,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "memory_store_redis")),
	}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + sessionID }

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]Exchange, error) {
	raw, err := s.backend.Range(ctx, s.key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	out := make([]Exchange, 0, len(raw))
	for _, item := range raw {
		var ex Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			s.logger.Warn("skipping corrupt exchange",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, ex Exchange, keep int) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	if keep <= 0 {
		keep = DefaultWindowSize
	}
	return s.backend.AppendCapped(ctx, s.key(sessionID), string(data), keep, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.backend.Delete(ctx, s.key(sessionID))
}
