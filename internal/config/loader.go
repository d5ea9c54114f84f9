package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies defaults, and
// returns a validated [Config]. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with every default applied and no overrides.
// The service is fully operable with this configuration (fallback replies,
// no persistence degradations surfaced to viewers).
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero or out-of-range tunable with its default.
// Out-of-range values fall back to the default rather than clamping, except
// ActiveAgentSlots which clamps into [MinAgentSlots, MaxAgentSlots].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultLLMProvider
	}
	if cfg.LLM.BaseModel == "" {
		cfg.LLM.BaseModel = DefaultBaseModel
	}
	if cfg.LLM.ComplexModel == "" {
		cfg.LLM.ComplexModel = DefaultComplexModel
	}
	if cfg.Pipeline.CooldownMs < MinCooldownMs {
		cfg.Pipeline.CooldownMs = DefaultCooldownMs
	}
	if cfg.Pipeline.MaxPerMinute < MinMaxPerMinute {
		cfg.Pipeline.MaxPerMinute = DefaultMaxPerMinute
	}
	switch {
	case cfg.Pipeline.ActiveAgentSlots == 0:
		cfg.Pipeline.ActiveAgentSlots = DefaultAgentSlots
	case cfg.Pipeline.ActiveAgentSlots < MinAgentSlots:
		cfg.Pipeline.ActiveAgentSlots = MinAgentSlots
	case cfg.Pipeline.ActiveAgentSlots > MaxAgentSlots:
		cfg.Pipeline.ActiveAgentSlots = MaxAgentSlots
	}
	if cfg.Pipeline.MonthlyBudgetUsd < MinMonthlyBudget {
		cfg.Pipeline.MonthlyBudgetUsd = DefaultMonthlyBudget
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.LLM.APIKey == "" {
		slog.Warn("llm.api_key is empty; replies will use the local fallback generator")
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; chat history, escalations and viewer memory will not persist")
	}
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("auth.jwt_secret is empty; all API requests will be rejected as unauthenticated")
	}

	return errors.Join(errs...)
}
