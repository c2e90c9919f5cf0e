// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains process configuration. All secrets are loaded once at
// startup and never mutated afterwards.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WebhookSecret is the shared secret used to verify delivery signatures.
	// Empty is a fatal configuration fault.
	WebhookSecret string `koanf:"webhook_secret"`

	// Per-category Linear credentials plus the coordinating Manager
	// credential. All four are required.
	LinearKeyBug         string `koanf:"linear_key_bug"`
	LinearKeyFeature     string `koanf:"linear_key_feature"`
	LinearKeyImprovement string `koanf:"linear_key_improvement"`
	LinearKeyManager     string `koanf:"linear_key_manager"`

	// AnthropicKey authenticates agent runs. When empty the agent adapter
	// falls back to the ANTHROPIC_API_KEY environment variable.
	AnthropicKey string `koanf:"anthropic_key"`

	// AgentModel selects the model used for agent runs.
	AgentModel string `koanf:"agent_model"`

	// AgentStepLimit bounds tool-use iterations per agent run.
	AgentStepLimit int `koanf:"agent_step_limit"`

	// AgentMaxConcurrent bounds concurrent model calls across a dispatch.
	AgentMaxConcurrent int `koanf:"agent_max_concurrent"`

	// SearchBaseURL and SearchKey configure the knowledge search provider
	// exposed to agents as a tool. Optional; search is disabled when unset.
	SearchBaseURL string `koanf:"search_base_url"`
	SearchKey     string `koanf:"search_key"`

	// AllowedIPs overrides the source-IP allowlist. Defaults to the four
	// published webhook egress addresses.
	AllowedIPs []string `koanf:"allowed_ips"`

	// TrustProxyHeader honors X-Forwarded-For when resolving the source
	// address. Enable only when a trusted proxy fronts the service; a direct
	// caller can forge the header.
	TrustProxyHeader bool `koanf:"trust_proxy_header"`

	// DedupePolicy decides how repeated delivery ids are treated:
	// off, observe (default) or enforce.
	DedupePolicy string `koanf:"dedupe_policy"`

	// DedupeSize bounds the in-memory seen-delivery cache.
	DedupeSize int `koanf:"dedupe_size"`

	// JournalPath enables the sqlite delivery journal when non-empty.
	// The core pipeline never reads it.
	JournalPath string `koanf:"journal_path"`

	// LinearRequestsPerSecond paces outbound Linear API calls.
	LinearRequestsPerSecond float64 `koanf:"linear_rps"`

	// DispatchTimeout caps a single dispatch including agent sub-calls.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":8080",
		AgentModel:              "claude-sonnet-4-5-20250929",
		AgentStepLimit:          10,
		AgentMaxConcurrent:      3,
		DedupePolicy:            "observe",
		DedupeSize:              50_000,
		LinearRequestsPerSecond: 5,
		DispatchTimeout:         5 * time.Minute,
	}
}
