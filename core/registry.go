package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/voundbrand/go-authority/identity"
)

// Exchanger is one upstream OAuth provider. AuthorizeURL builds the redirect
// target for a login begin; ExchangeCode runs the two upstream calls (code to
// token, token to profile) of a callback.
type Exchanger interface {
	ID() string
	AuthorizeURL(state string, redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, code string, redirectURI string) (identity.Profile, error)
}

type ExchangerRegistry interface {
	Register(exchanger Exchanger) error
	Get(providerID string) (Exchanger, bool)
	List() []Exchanger
}

type exchangerRegistry struct {
	mu         sync.RWMutex
	exchangers map[string]Exchanger
}

func NewExchangerRegistry() ExchangerRegistry {
	return &exchangerRegistry{exchangers: make(map[string]Exchanger)}
}

func (r *exchangerRegistry) Register(exchanger Exchanger) error {
	if exchanger == nil {
		return fmt.Errorf("core: exchanger is nil")
	}
	id := strings.TrimSpace(exchanger.ID())
	if id == "" {
		return fmt.Errorf("core: exchanger id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exchangers[id]; exists {
		return fmt.Errorf("core: exchanger already registered: %s", id)
	}
	r.exchangers[id] = exchanger
	return nil
}

func (r *exchangerRegistry) Get(providerID string) (Exchanger, bool) {
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	exchanger, ok := r.exchangers[id]
	r.mu.RUnlock()
	return exchanger, ok
}

func (r *exchangerRegistry) List() []Exchanger {
	r.mu.RLock()
	ids := make([]string, 0, len(r.exchangers))
	for id := range r.exchangers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	exchangers := make([]Exchanger, 0, len(ids))
	r.mu.RLock()
	for _, id := range ids {
		exchangers = append(exchangers, r.exchangers[id])
	}
	r.mu.RUnlock()
	return exchangers
}
