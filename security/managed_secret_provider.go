package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voundbrand/go-authority/core"
)

const (
	envelopeAlgorithmKMS   = "kms-managed"
	envelopeAlgorithmVault = "vault-transit"
)

// RemoteSealRequest carries one plaintext to an external key service.
type RemoteSealRequest struct {
	KeyID      string
	KeyVersion int
	Plaintext  []byte
}

// RemoteOpenRequest carries one sealed payload back for decryption.
type RemoteOpenRequest struct {
	KeyID      string
	KeyVersion int
	Ciphertext []byte
}

// RemoteSealer is the client side of an external key service: a cloud KMS
// key or a Vault transit engine. Implementations carry their own endpoint
// and credential wiring; the provider never sees key material.
type RemoteSealer interface {
	Seal(ctx context.Context, req RemoteSealRequest) ([]byte, error)
	Open(ctx context.Context, req RemoteOpenRequest) ([]byte, error)
}

// KeyRotationWindow bounds when a key version may seal or open rows. A zero
// bound leaves that side open.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	afterStart := w.NotBefore.IsZero() || !ts.Before(w.NotBefore.UTC())
	beforeEnd := w.NotAfter.IsZero() || !ts.After(w.NotAfter.UTC())
	return afterStart && beforeEnd
}

type managedKeyRef struct {
	KeyID   string
	Version int
}

func (r managedKeyRef) id() string {
	return fmt.Sprintf("%s:%d", r.KeyID, r.Version)
}

// ManagedSecretProvider delegates sealing to an external key service and
// wraps the result in the vault envelope, so managed and app-key rows share
// one on-disk format. Decryption only follows envelopes naming a configured
// key; anything else is rejected before the service is called.
type ManagedSecretProvider struct {
	client    RemoteSealer
	algorithm string
	active    managedKeyRef
	openable  map[string]managedKeyRef
	windows   map[string]KeyRotationWindow
	now       func() time.Time
}

type ManagedOption func(*ManagedSecretProvider)

// WithManagedOpenKey allows decryption of rows sealed under a retired key,
// keeping old ciphertext readable while new writes use the active key.
func WithManagedOpenKey(keyID string, version int) ManagedOption {
	return func(p *ManagedSecretProvider) {
		ref, err := newManagedKeyRef(keyID, version)
		if err != nil {
			return
		}
		p.openable[ref.id()] = ref
	}
}

// WithManagedRotationWindow restricts a key version to a validity window.
// Outside the window both seal and open refuse the key.
func WithManagedRotationWindow(keyID string, version int, window KeyRotationWindow) ManagedOption {
	return func(p *ManagedSecretProvider) {
		ref, err := newManagedKeyRef(keyID, version)
		if err != nil {
			return
		}
		p.windows[ref.id()] = window
	}
}

func WithManagedClock(now func() time.Time) ManagedOption {
	return func(p *ManagedSecretProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewKMSSecretProvider seals provider tokens through a cloud KMS key.
func NewKMSSecretProvider(client RemoteSealer, keyID string, version int, opts ...ManagedOption) (*ManagedSecretProvider, error) {
	return newManagedSecretProvider(client, envelopeAlgorithmKMS, keyID, version, opts...)
}

// NewVaultSecretProvider seals provider tokens through a Vault transit key.
func NewVaultSecretProvider(client RemoteSealer, keyPath string, version int, opts ...ManagedOption) (*ManagedSecretProvider, error) {
	return newManagedSecretProvider(client, envelopeAlgorithmVault, keyPath, version, opts...)
}

func newManagedSecretProvider(client RemoteSealer, algorithm, keyID string, version int, opts ...ManagedOption) (*ManagedSecretProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("security: remote sealer is required")
	}
	active, err := newManagedKeyRef(keyID, version)
	if err != nil {
		return nil, err
	}
	provider := &ManagedSecretProvider{
		client:    client,
		algorithm: algorithm,
		active:    active,
		openable:  map[string]managedKeyRef{active.id(): active},
		windows:   map[string]KeyRotationWindow{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func (p *ManagedSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	if !p.windowAllows(p.active) {
		return nil, fmt.Errorf("security: key %q version %d is outside its rotation window", p.active.KeyID, p.active.Version)
	}

	sealed, err := p.client.Seal(ctx, RemoteSealRequest{
		KeyID:      p.active.KeyID,
		KeyVersion: p.active.Version,
		Plaintext:  append([]byte(nil), plaintext...),
	})
	if err != nil {
		return nil, fmt.Errorf("security: remote seal: %w", err)
	}
	if len(sealed) == 0 {
		return nil, fmt.Errorf("security: remote seal returned empty ciphertext")
	}
	return encodeEnvelope(envelope{
		KeyID:      p.active.KeyID,
		Version:    p.active.Version,
		Algorithm:  p.algorithm,
		Ciphertext: encodePayload(sealed),
	})
}

func (p *ManagedSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if parsed.Algorithm != p.algorithm {
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", parsed.Algorithm)
	}
	ref, err := newManagedKeyRef(parsed.KeyID, parsed.Version)
	if err != nil {
		return nil, err
	}
	if _, ok := p.openable[ref.id()]; !ok {
		return nil, fmt.Errorf("security: key %q version %d is not configured for decryption", ref.KeyID, ref.Version)
	}
	if !p.windowAllows(ref) {
		return nil, fmt.Errorf("security: key %q version %d is outside its rotation window", ref.KeyID, ref.Version)
	}

	sealed, err := decodePayload(parsed.Ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := p.client.Open(ctx, RemoteOpenRequest{
		KeyID:      ref.KeyID,
		KeyVersion: ref.Version,
		Ciphertext: sealed,
	})
	if err != nil {
		return nil, fmt.Errorf("security: remote open: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: remote open returned empty plaintext")
	}
	return plaintext, nil
}

func (p *ManagedSecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.active.KeyID
}

func (p *ManagedSecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.active.Version
}

func (p *ManagedSecretProvider) windowAllows(ref managedKeyRef) bool {
	window, ok := p.windows[ref.id()]
	if !ok {
		return true
	}
	return window.Allows(p.now())
}

func newManagedKeyRef(keyID string, version int) (managedKeyRef, error) {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return managedKeyRef{}, fmt.Errorf("security: key id is required")
	}
	if version <= 0 {
		return managedKeyRef{}, fmt.Errorf("security: key version must be greater than zero")
	}
	return managedKeyRef{KeyID: trimmed, Version: version}, nil
}

var _ core.SecretProvider = (*ManagedSecretProvider)(nil)
