// Package config loads styleagent configuration from TOML files in
// standard locations, with environment variable overrides for API
// keys.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Timwood0x10/StyleAgent/llm"
	"github.com/Timwood0x10/StyleAgent/protocol"
	"github.com/Timwood0x10/StyleAgent/retry"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetryConfig is the [retry] section.
type RetryConfig struct {
	MaxRetries    int      `toml:"max_retries"`
	InitialDelay  Duration `toml:"initial_delay"`
	BackoffFactor float64  `toml:"backoff_factor"`
	MaxDelay      Duration `toml:"max_delay"`
}

// Handler converts the section to the retry package's configuration.
func (c RetryConfig) Handler() retry.Config {
	return retry.Config{
		MaxRetries:    c.MaxRetries,
		InitialDelay:  c.InitialDelay.Std(),
		BackoffFactor: c.BackoffFactor,
		MaxDelay:      c.MaxDelay.Std(),
	}
}

// BreakerConfig is the [breaker] section.
type BreakerConfig struct {
	FailureThreshold int      `toml:"failure_threshold"`
	CoolDown         Duration `toml:"cool_down"`
}

// Breaker converts the section to the retry package's configuration.
func (c BreakerConfig) Breaker() retry.BreakerConfig {
	return retry.BreakerConfig{
		FailureThreshold: c.FailureThreshold,
		CoolDown:         c.CoolDown.Std(),
	}
}

// FabricConfig is the [fabric] section.
type FabricConfig struct {
	BufferSize       int      `toml:"buffer_size"`
	MaxRetries       int      `toml:"max_retries"`
	HeartbeatTimeout Duration `toml:"heartbeat_timeout"`
}

// Fabric converts the section to the protocol package's configuration.
func (c FabricConfig) Fabric() protocol.Config {
	return protocol.Config{
		BufferSize:       c.BufferSize,
		MaxRetries:       c.MaxRetries,
		HeartbeatTimeout: c.HeartbeatTimeout.Std(),
	}
}

// StorageConfig is the [storage] section.
type StorageConfig struct {
	// Backend selects the store: "memory" or "bleve".
	Backend string `toml:"backend"`

	// Path is the data directory for the bleve backend.
	Path string `toml:"path"`
}

// RateLimitConfig is the [ratelimit] section.
type RateLimitConfig struct {
	// RequestsPerMinute bounds model calls; zero disables limiting.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// AgentConfig is the [agent] section.
type AgentConfig struct {
	// DefaultTokenLimit is the per-worker instruction budget.
	DefaultTokenLimit int `toml:"default_token_limit"`

	// CollectTimeout bounds the leader's wait for worker reports.
	CollectTimeout Duration `toml:"collect_timeout"`

	// ValidationLevel is strict, normal or lenient.
	ValidationLevel string `toml:"validation_level"`
}

// Config is the full styleagent configuration.
type Config struct {
	LLM       llm.Config      `toml:"llm"`
	Retry     RetryConfig     `toml:"retry"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Fabric    FabricConfig    `toml:"fabric"`
	Storage   StorageConfig   `toml:"storage"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Agent     AgentConfig     `toml:"agent"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		LLM: llm.Config{
			Provider:  "mock",
			MaxTokens: 1024,
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			InitialDelay:  Duration(time.Second),
			BackoffFactor: 2.0,
			MaxDelay:      Duration(30 * time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CoolDown:         Duration(30 * time.Second),
		},
		Fabric: FabricConfig{
			BufferSize:       256,
			MaxRetries:       3,
			HeartbeatTimeout: Duration(60 * time.Second),
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Agent: AgentConfig{
			DefaultTokenLimit: 500,
			CollectTimeout:    Duration(60 * time.Second),
			ValidationLevel:   "normal",
		},
	}
}

// StandardPaths returns the config file locations in priority order.
func StandardPaths() []string {
	paths := []string{"styleagent.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "styleagent", "config.toml"),
			filepath.Join(home, ".styleagent", "config.toml"),
		)
	}
	return paths
}

// Load reads the first available standard file, falling back to
// defaults when none exists. Environment overrides apply either way.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	cfg := Default()
	cfg.applyEnv()
	return cfg, "", nil
}

// LoadFile reads a specific TOML file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv fills the API key from the provider's conventional
// environment variable when the file leaves it empty.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(envVarForProvider(c.LLM.Provider))
	}
	if v := os.Getenv("STYLEAGENT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
}

func envVarForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return "STYLEAGENT_API_KEY"
	}
}
