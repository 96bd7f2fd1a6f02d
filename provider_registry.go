package authority

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/voundbrand/go-authority/core"
	"github.com/voundbrand/go-authority/providers/github"
	"github.com/voundbrand/go-authority/providers/google"
	"github.com/voundbrand/go-authority/providers/microsoft"
	"github.com/voundbrand/go-authority/security"
)

func GitHubExchanger(cfg github.Config) (core.Exchanger, error) {
	return github.New(cfg)
}

func GoogleExchanger(cfg google.Config) (core.Exchanger, error) {
	return google.New(cfg)
}

func MicrosoftExchanger(cfg microsoft.Config) (core.Exchanger, error) {
	return microsoft.New(cfg)
}

// ExchangerPack is a named set of login providers registered together.
type ExchangerPack struct {
	Name       string
	Exchangers []core.Exchanger
}

// BuiltinExchangerPack builds the named builtin exchangers with client
// credentials from the secret source; with no ids it builds every builtin.
// Each requested provider must resolve credentials, so a deployment that
// only carries some of them names those explicitly.
func BuiltinExchangerPack(source security.SecretSource, providerIDs ...string) (ExchangerPack, error) {
	if source == nil {
		return ExchangerPack{}, fmt.Errorf("authority: secret source is required")
	}
	if len(providerIDs) == 0 {
		providerIDs = []string{github.ProviderID, google.ProviderID, microsoft.ProviderID}
	}

	pack := ExchangerPack{Name: "builtin"}
	for _, providerID := range providerIDs {
		id := strings.ToLower(strings.TrimSpace(providerID))

		var build func(security.ClientCredentials) (core.Exchanger, error)
		switch id {
		case github.ProviderID:
			build = func(credentials security.ClientCredentials) (core.Exchanger, error) {
				return GitHubExchanger(github.Config{
					ClientID:     credentials.ClientID,
					ClientSecret: credentials.ClientSecret,
				})
			}
		case google.ProviderID:
			build = func(credentials security.ClientCredentials) (core.Exchanger, error) {
				return GoogleExchanger(google.Config{
					ClientID:     credentials.ClientID,
					ClientSecret: credentials.ClientSecret,
				})
			}
		case microsoft.ProviderID:
			build = func(credentials security.ClientCredentials) (core.Exchanger, error) {
				return MicrosoftExchanger(microsoft.Config{
					ClientID:     credentials.ClientID,
					ClientSecret: credentials.ClientSecret,
				})
			}
		default:
			return ExchangerPack{}, fmt.Errorf("authority: unknown builtin provider %q", providerID)
		}

		credentials, err := source.ClientCredentials(id)
		if err != nil {
			return ExchangerPack{}, err
		}
		exchanger, err := build(credentials)
		if err != nil {
			return ExchangerPack{}, err
		}
		pack.Exchangers = append(pack.Exchangers, exchanger)
	}
	return pack, nil
}

// PackRegistry collects exchanger packs ahead of service construction, so
// embedders can stage their own providers next to the builtins and apply
// them all at once.
type PackRegistry struct {
	mu    sync.RWMutex
	packs map[string]ExchangerPack
}

func NewPackRegistry() *PackRegistry {
	return &PackRegistry{packs: map[string]ExchangerPack{}}
}

func (r *PackRegistry) RegisterPack(pack ExchangerPack) error {
	if r == nil {
		return fmt.Errorf("authority: pack registry is nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("authority: exchanger pack name is required")
	}
	if len(pack.Exchangers) == 0 {
		return fmt.Errorf("authority: exchanger pack %q has no exchangers", name)
	}

	normalized := ExchangerPack{
		Name:       name,
		Exchangers: append([]core.Exchanger(nil), pack.Exchangers...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.packs[name]; exists {
		return fmt.Errorf("authority: exchanger pack %q already registered", name)
	}
	r.packs[name] = normalized
	return nil
}

// Packs returns the registered packs sorted by name.
func (r *PackRegistry) Packs() []ExchangerPack {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ExchangerPack, 0, len(names))
	for _, name := range names {
		pack := r.packs[name]
		out = append(out, ExchangerPack{
			Name:       pack.Name,
			Exchangers: append([]core.Exchanger(nil), pack.Exchangers...),
		})
	}
	return out
}

// ApplyTo registers every staged exchanger on the service registry.
func (r *PackRegistry) ApplyTo(registry core.ExchangerRegistry) error {
	if r == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("authority: exchanger registry is required")
	}

	for _, pack := range r.Packs() {
		for _, exchanger := range pack.Exchangers {
			if exchanger == nil {
				return fmt.Errorf("authority: exchanger pack %q contains nil exchanger", pack.Name)
			}
			if err := registry.Register(exchanger); err != nil {
				return err
			}
		}
	}
	return nil
}
