package core

import (
	"fmt"
	"strings"
	"time"
)

type SessionConfig struct {
	CLITTLHours      int `koanf:"cli_ttl_hours" mapstructure:"cli_ttl_hours"`
	PlatformTTLHours int `koanf:"platform_ttl_hours" mapstructure:"platform_ttl_hours"`
	BcryptCost       int `koanf:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

type LoginConfig struct {
	StateTTLMinutes int `koanf:"state_ttl_minutes" mapstructure:"state_ttl_minutes"`
}

type OutboxConfig struct {
	BatchSize   int `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Session     SessionConfig `koanf:"session" mapstructure:"session"`
	Login       LoginConfig   `koanf:"login" mapstructure:"login"`
	Outbox      OutboxConfig  `koanf:"outbox" mapstructure:"outbox"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "authority",
		Session: SessionConfig{
			CLITTLHours:      24 * 30,
			PlatformTTLHours: 24 * 7,
			BcryptCost:       DefaultBcryptCost,
		},
		Login: LoginConfig{
			StateTTLMinutes: 10,
		},
		Outbox: OutboxConfig{
			BatchSize:   50,
			MaxAttempts: 5,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Session.CLITTLHours < 0 || c.Session.PlatformTTLHours < 0 {
		return fmt.Errorf("core: session ttl must not be negative")
	}
	if c.Login.StateTTLMinutes < 0 {
		return fmt.Errorf("core: login state ttl must not be negative")
	}
	return nil
}

func (c Config) CLISessionTTL() time.Duration {
	if c.Session.CLITTLHours <= 0 {
		return time.Duration(DefaultConfig().Session.CLITTLHours) * time.Hour
	}
	return time.Duration(c.Session.CLITTLHours) * time.Hour
}

func (c Config) PlatformSessionTTL() time.Duration {
	if c.Session.PlatformTTLHours <= 0 {
		return time.Duration(DefaultConfig().Session.PlatformTTLHours) * time.Hour
	}
	return time.Duration(c.Session.PlatformTTLHours) * time.Hour
}

func (c Config) LoginStateTTL() time.Duration {
	if c.Login.StateTTLMinutes <= 0 {
		return time.Duration(DefaultConfig().Login.StateTTLMinutes) * time.Minute
	}
	return time.Duration(c.Login.StateTTLMinutes) * time.Minute
}
