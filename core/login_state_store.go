package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultLoginStateTTL = 10 * time.Minute

// MemoryLoginStateStore is the in-process fallback used by tests and by
// deployments that have not wired a SQL store. Consume removes the entry
// before checking expiry, so a state is spent on first redemption no matter
// the outcome.
type MemoryLoginStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]LoginState
}

func NewMemoryLoginStateStore(ttl time.Duration) *MemoryLoginStateStore {
	if ttl <= 0 {
		ttl = defaultLoginStateTTL
	}
	return &MemoryLoginStateStore{
		ttl:     ttl,
		entries: map[string]LoginState{},
	}
}

func (s *MemoryLoginStateStore) Save(_ context.Context, record LoginState) error {
	if s == nil {
		return fmt.Errorf("core: login state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: login state is required")
	}
	if err := record.Flow.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[state] = record
	s.mu.Unlock()

	return nil
}

func (s *MemoryLoginStateStore) Consume(_ context.Context, state string) (LoginState, error) {
	if s == nil {
		return LoginState{}, fmt.Errorf("core: login state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return LoginState{}, fmt.Errorf("core: login state is required")
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return LoginState{}, ErrLoginStateNotFound
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return LoginState{}, ErrLoginStateNotFound
	}

	return record, nil
}

func (s *MemoryLoginStateStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: login state store is not configured")
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for state, record := range s.entries {
		if !record.ExpiresAt.IsZero() && record.ExpiresAt.Before(before) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed, nil
}

// GenerateLoginState returns a random, URL-safe state value.
func GenerateLoginState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate login state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ LoginStateStore = (*MemoryLoginStateStore)(nil)
