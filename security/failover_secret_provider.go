package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voundbrand/go-authority/core"
)

// FailurePolicy decides what happens when the primary provider errors.
type FailurePolicy string

const (
	// FailurePolicyStrict surfaces primary failures to the caller.
	FailurePolicyStrict FailurePolicy = "strict"
	// FailurePolicyFallback retries the operation on the fallback provider.
	FailurePolicyFallback FailurePolicy = "fallback"
)

// FailoverEvent records one failover decision for operators.
type FailoverEvent struct {
	OccurredAt time.Time
	Operation  string
	Policy     FailurePolicy
	Outcome    string
	Err        string
}

type FailoverHook func(event FailoverEvent)

type keyedProvider interface {
	KeyID() string
	Version() int
}

// FailoverSecretProvider chains two secret providers. During an app-key
// rotation the retiring key rides as fallback so old rows stay readable
// while every new write seals under the active key.
type FailoverSecretProvider struct {
	primary  core.SecretProvider
	fallback core.SecretProvider
	policy   FailurePolicy
	hook     FailoverHook
	now      func() time.Time

	mu       sync.RWMutex
	lastID   string
	lastVers int
}

type FailoverOption func(*FailoverSecretProvider)

func WithFallbackSecretProvider(provider core.SecretProvider) FailoverOption {
	return func(f *FailoverSecretProvider) {
		f.fallback = provider
	}
}

func WithFailurePolicy(policy FailurePolicy) FailoverOption {
	return func(f *FailoverSecretProvider) {
		f.policy = normalizeFailurePolicy(policy)
	}
}

// WithFailoverHook observes failover decisions, typically for logging.
func WithFailoverHook(hook FailoverHook) FailoverOption {
	return func(f *FailoverSecretProvider) {
		f.hook = hook
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *FailoverSecretProvider) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFailoverSecretProvider(primary core.SecretProvider, opts ...FailoverOption) (*FailoverSecretProvider, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret provider is required")
	}
	provider := &FailoverSecretProvider{
		primary: primary,
		policy:  FailurePolicyStrict,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	if provider.policy == FailurePolicyFallback && provider.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a fallback secret provider")
	}
	provider.recordKey(provider.primary)
	return provider, nil
}

func (p *FailoverSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	ciphertext, err := p.primary.Encrypt(ctx, plaintext)
	if err == nil {
		p.recordKey(p.primary)
		return ciphertext, nil
	}
	p.emit("encrypt", "primary_failed", err)
	if p.policy == FailurePolicyStrict || p.fallback == nil {
		return nil, fmt.Errorf("security: primary encrypt failed: %w", err)
	}
	ciphertext, fallbackErr := p.fallback.Encrypt(ctx, plaintext)
	if fallbackErr != nil {
		p.emit("encrypt", "fallback_failed", fallbackErr)
		return nil, fmt.Errorf("security: primary encrypt failed: %v; fallback encrypt failed: %w", err, fallbackErr)
	}
	p.recordKey(p.fallback)
	p.emit("encrypt", "fallback_succeeded", err)
	return ciphertext, nil
}

func (p *FailoverSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	plaintext, err := p.primary.Decrypt(ctx, ciphertext)
	if err == nil {
		return plaintext, nil
	}
	p.emit("decrypt", "primary_failed", err)
	if p.policy == FailurePolicyStrict || p.fallback == nil {
		return nil, fmt.Errorf("security: primary decrypt failed: %w", err)
	}
	plaintext, fallbackErr := p.fallback.Decrypt(ctx, ciphertext)
	if fallbackErr != nil {
		p.emit("decrypt", "fallback_failed", fallbackErr)
		return nil, fmt.Errorf("security: primary decrypt failed: %v; fallback decrypt failed: %w", err, fallbackErr)
	}
	p.emit("decrypt", "fallback_succeeded", err)
	return plaintext, nil
}

// KeyID reports the key of the most recent successful encryption.
func (p *FailoverSecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastID
}

func (p *FailoverSecretProvider) Version() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastVers
}

func (p *FailoverSecretProvider) emit(operation, outcome string, err error) {
	if p.hook == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.hook(FailoverEvent{
		OccurredAt: p.now().UTC(),
		Operation:  operation,
		Policy:     p.policy,
		Outcome:    outcome,
		Err:        msg,
	})
}

func (p *FailoverSecretProvider) recordKey(provider core.SecretProvider) {
	keyed, ok := provider.(keyedProvider)
	if !ok {
		return
	}
	keyID := strings.TrimSpace(keyed.KeyID())
	version := keyed.Version()
	if keyID == "" || version <= 0 {
		return
	}
	p.mu.Lock()
	p.lastID = keyID
	p.lastVers = version
	p.mu.Unlock()
}

func normalizeFailurePolicy(policy FailurePolicy) FailurePolicy {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(string(policy)))) {
	case FailurePolicyFallback:
		return FailurePolicyFallback
	default:
		return FailurePolicyStrict
	}
}

var _ core.SecretProvider = (*FailoverSecretProvider)(nil)
