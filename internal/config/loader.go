package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TRIAGE_CONFIG is set
//  3. env (prefix TRIAGE_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TRIAGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TRIAGE_ADDR, TRIAGE_WEBHOOK_SECRET, ...
	// Map env keys like TRIAGE_WEBHOOK_SECRET -> webhook_secret (flat keys).
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("TRIAGE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "triage_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the startup contract: a missing secret or credential is a
// configuration fault that blocks all requests, not a per-request failure.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook_secret", ErrMissingSecret)
	}
	for name, v := range map[string]string{
		"linear_key_bug":         c.LinearKeyBug,
		"linear_key_feature":     c.LinearKeyFeature,
		"linear_key_improvement": c.LinearKeyImprovement,
		"linear_key_manager":     c.LinearKeyManager,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingSecret, name)
		}
	}
	switch c.DedupePolicy {
	case "off", "observe", "enforce":
	default:
		return fmt.Errorf("%w: dedupe_policy must be off, observe or enforce", ErrInvalidConfig)
	}
	if c.AgentStepLimit <= 0 {
		return fmt.Errorf("%w: agent_step_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
