package behavior

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the executable behaviors a chain descriptor can name.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
}

func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

func (r *Registry) Register(behavior Behavior) error {
	if behavior == nil {
		return fmt.Errorf("behavior: behavior is nil")
	}
	behaviorType := strings.TrimSpace(behavior.Type())
	if behaviorType == "" {
		return fmt.Errorf("behavior: behavior type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.behaviors[behaviorType]; exists {
		return fmt.Errorf("behavior: behavior already registered: %s", behaviorType)
	}
	r.behaviors[behaviorType] = behavior
	return nil
}

func (r *Registry) Get(behaviorType string) (Behavior, bool) {
	behaviorType = strings.TrimSpace(behaviorType)
	if behaviorType == "" {
		return nil, false
	}
	r.mu.RLock()
	behavior, ok := r.behaviors[behaviorType]
	r.mu.RUnlock()
	return behavior, ok
}

// Types lists the registered behavior types sorted for stable output.
func (r *Registry) Types() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.behaviors))
	for behaviorType := range r.behaviors {
		types = append(types, behaviorType)
	}
	r.mu.RUnlock()
	sort.Strings(types)
	return types
}
