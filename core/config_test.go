package core

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "authority" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Session.BcryptCost != DefaultBcryptCost {
		t.Fatalf("expected bcrypt cost %d, got %d", DefaultBcryptCost, cfg.Session.BcryptCost)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty service name to fail")
	}

	cfg = DefaultConfig()
	cfg.Session.CLITTLHours = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative ttl to fail")
	}

	cfg = DefaultConfig()
	cfg.Login.StateTTLMinutes = -5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative state ttl to fail")
	}
}

func TestConfigTTLAccessors(t *testing.T) {
	cfg := Config{}
	if got := cfg.CLISessionTTL(); got != 720*time.Hour {
		t.Fatalf("expected default cli ttl, got %v", got)
	}
	if got := cfg.PlatformSessionTTL(); got != 168*time.Hour {
		t.Fatalf("expected default platform ttl, got %v", got)
	}
	if got := cfg.LoginStateTTL(); got != 10*time.Minute {
		t.Fatalf("expected default state ttl, got %v", got)
	}

	cfg.Session.CLITTLHours = 48
	cfg.Session.PlatformTTLHours = 12
	cfg.Login.StateTTLMinutes = 5
	if got := cfg.CLISessionTTL(); got != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", got)
	}
	if got := cfg.PlatformSessionTTL(); got != 12*time.Hour {
		t.Fatalf("expected 12h, got %v", got)
	}
	if got := cfg.LoginStateTTL(); got != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", got)
	}
}
