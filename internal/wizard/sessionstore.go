package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates no draft exists for the session id.
var ErrSessionNotFound = errors.New("wizard: session not found")

// SessionStore persists in-flight wizard sessions between requests.
// Drafts are keyed by the operator's session and discarded on
// submission or expiry.
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}

// sessionPayload is the stored representation. Step sets serialize as
// sorted index slices.
type sessionPayload struct {
	DraftID        string          `json:"draft_id"`
	Draft          OrderDraft      `json:"draft"`
	CurrentStep    int             `json:"current_step"`
	CompletedSteps []int           `json:"completed_steps"`
	InvalidSteps   []int           `json:"invalid_steps"`
	ProductOptions []ProductOption `json:"product_options"`
}

func encodeSession(sess *Session) ([]byte, error) {
	return json.Marshal(sessionPayload{
		DraftID:        sess.DraftID,
		Draft:          sess.Draft,
		CurrentStep:    sess.State.CurrentStep,
		CompletedSteps: sess.State.CompletedSteps.Indices(),
		InvalidSteps:   sess.State.InvalidSteps.Indices(),
		ProductOptions: sess.ProductOptions,
	})
}

func decodeSession(id string, data []byte, registry *Registry) (*Session, error) {
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	sess := NewSession(id, registry)
	if payload.DraftID != "" {
		sess.DraftID = payload.DraftID
	}
	sess.Draft = payload.Draft
	sess.State.CurrentStep = payload.CurrentStep
	sess.State.CompletedSteps = NewStepSet(payload.CompletedSteps...)
	sess.State.InvalidSteps = NewStepSet(payload.InvalidSteps...)
	if payload.ProductOptions != nil {
		sess.ProductOptions = payload.ProductOptions
	}
	return sess, nil
}

// RedisSessionStore keeps drafts in Redis keyed by session id.
type RedisSessionStore struct {
	client   *redis.Client
	registry *Registry
	ttl      time.Duration
}

// NewRedisSessionStore constructs the store.
func NewRedisSessionStore(client *redis.Client, registry *Registry, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, registry: registry, ttl: ttl}
}

func draftKey(id string) string { return "wizard:draft:" + id }

// Load restores the session's draft or returns ErrSessionNotFound.
func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("wizard: load session: %w", err)
	}
	return decodeSession(id, data, s.registry)
}

// Save persists the session with the configured TTL.
func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return fmt.Errorf("wizard: encode session: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: save session: %w", err)
	}
	return nil
}

// Delete discards the draft.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("wizard: delete session: %w", err)
	}
	return nil
}

// MemorySessionStore is a map-backed store for tests and single-node
// development.
type MemorySessionStore struct {
	mu       sync.Mutex
	registry *Registry
	data     map[string][]byte
}

// NewMemorySessionStore constructs the store.
func NewMemorySessionStore(registry *Registry) *MemorySessionStore {
	return &MemorySessionStore{registry: registry, data: make(map[string][]byte)}
}

// Load restores the session's draft or returns ErrSessionNotFound.
func (s *MemorySessionStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	data, ok := s.data[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeSession(id, data, s.registry)
}

// Save persists the session.
func (s *MemorySessionStore) Save(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[sess.ID] = data
	s.mu.Unlock()
	return nil
}

// Delete discards the draft.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}
