// Package identity models the normalized user profile produced by an OAuth
// code exchange, independent of which upstream provider supplied it.
package identity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Profile is the outcome of one completed OAuth exchange: who the user is
// plus the upstream tokens needed to act on their behalf later.
type Profile struct {
	ProviderID        string
	ProviderAccountID string
	Email             string
	FirstName         string
	LastName          string
	DisplayName       string
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    *time.Time
	Scopes            []string
	Raw               map[string]any
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.ProviderAccountID) == "" {
		return fmt.Errorf("identity: provider account id is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("identity: email is required")
	}
	return nil
}

// SplitDisplayName divides a display name at the first space. Multi-word
// given names land in the last-name bucket; that imprecision is accepted and
// the split is deliberately not cleverer than this.
func SplitDisplayName(name string) (first string, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	idx := strings.Index(name, " ")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], strings.TrimSpace(name[idx+1:])
}

// WithName fills FirstName/LastName from DisplayName when the provider did
// not supply structured name parts.
func (p Profile) WithName() Profile {
	if strings.TrimSpace(p.FirstName) != "" || strings.TrimSpace(p.LastName) != "" {
		return p
	}
	p.FirstName, p.LastName = SplitDisplayName(p.DisplayName)
	return p
}

func ReadString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case json.Number:
		return strings.TrimSpace(typed.String())
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func ReadBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	case json.Number:
		parsed, err := typed.Int64()
		return err == nil && parsed != 0
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return false
	}
}

func CopyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
