// Package convstore persists intake conversation contexts between turns.
// Contexts are small JSON documents keyed by session ID with a sliding
// TTL, so an abandoned conversation disappears on its own.
package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/speakfree/reporting/internal/dialogue"
)

const (
	// KeyPrefix is the Redis key prefix for conversation contexts.
	KeyPrefix = "conv:"

	// ConversationTTL is refreshed on every save. A conversation idle
	// longer than this is gone.
	ConversationTTL = 24 * time.Hour
)

// Store loads and saves conversation contexts.
type Store interface {
	// Get returns the context for a session, or nil if absent.
	Get(ctx context.Context, sessionID string) (*dialogue.Context, error)

	// Put saves the context and refreshes its TTL.
	Put(ctx context.Context, c *dialogue.Context) error

	// Delete removes the context.
	Delete(ctx context.Context, sessionID string) error
}

// RedisStore is the production Store backed by Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisAddr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("convstore: redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*dialogue.Context, error) {
	data, err := s.client.Get(ctx, KeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("convstore: get %s: %w", sessionID, err)
	}

	var c dialogue.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("convstore: decode %s: %w", sessionID, err)
	}
	return &c, nil
}

func (s *RedisStore) Put(ctx context.Context, c *dialogue.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("convstore: encode %s: %w", c.SessionID, err)
	}
	if err := s.client.Set(ctx, KeyPrefix+c.SessionID, data, ConversationTTL).Err(); err != nil {
		return fmt.Errorf("convstore: put %s: %w", c.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, KeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("convstore: delete %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*dialogue.Context
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*dialogue.Context)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*dialogue.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[sessionID]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (s *MemoryStore) Put(_ context.Context, c *dialogue.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts[c.SessionID] = clone(c)
	return nil
}

// clone copies a context including its contact details, so callers and
// the store never share pointers.
func clone(c *dialogue.Context) *dialogue.Context {
	copied := *c
	if c.Contact != nil {
		contact := *c.Contact
		copied.Contact = &contact
	}
	return &copied
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, sessionID)
	return nil
}
