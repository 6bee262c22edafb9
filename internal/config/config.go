// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

// Package config loads phonepass settings from defaults, an optional YAML
// file, environment fallbacks and command-line flags, in that order.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/phonepass/phonepass/internal/auth"
)

// Code storage backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the full phonepass configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Codes    CodesConfig    `koanf:"codes"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Sessions SessionsConfig `koanf:"sessions"`
}

// DatabaseConfig points at the PostgreSQL database holding users, sessions
// and login attempts.
type DatabaseConfig struct {
	URL string `koanf:"url" jsonschema:"description=PostgreSQL connection URL. Falls back to DATABASE_URL."`
}

// CodesConfig controls verification code storage and timing.
type CodesConfig struct {
	Backend      string        `koanf:"backend" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	RedisURL     string        `koanf:"redis_url" jsonschema:"description=Redis URL for the redis backend. Falls back to REDIS_URL."`
	TTL          time.Duration `koanf:"ttl" jsonschema:"type=string,description=Code lifetime such as 5m"`
	ResendWindow time.Duration `koanf:"resend_window" jsonschema:"type=string,description=Minimum gap between two codes for a phone"`
	Retention    time.Duration `koanf:"retention" jsonschema:"type=string,description=How long the redis backend keeps a code record"`
	FixedCode    string        `koanf:"fixed_code" jsonschema:"pattern=^[0-9]{6}$,description=Issue this code instead of a random one. Testing only."`
}

// AuthConfig holds orchestrator policy.
type AuthConfig struct {
	RegistrationPolicy string `koanf:"registration_policy" jsonschema:"enum=auto,enum=explicit"`
}

// LogConfig selects the log output format.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=Listen address for /metrics and health probes"`
}

// SessionsConfig configures background session maintenance.
type SessionsConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval" jsonschema:"type=string,description=How often expired sessions are purged"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Codes: CodesConfig{
			Backend:      BackendPostgres,
			TTL:          auth.DefaultCodeTTL,
			ResendWindow: auth.DefaultResendWindow,
			Retention:    time.Hour,
		},
		Auth:     AuthConfig{RegistrationPolicy: string(auth.RegistrationAuto)},
		Log:      LogConfig{Format: LogFormatJSON},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Sessions: SessionsConfig{SweepInterval: 10 * time.Minute},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":        "database.url",
	"codes-backend":       "codes.backend",
	"redis-url":           "codes.redis_url",
	"code-ttl":            "codes.ttl",
	"resend-window":       "codes.resend_window",
	"fixed-code":          "codes.fixed_code",
	"registration-policy": "auth.registration_policy",
	"log-format":          "log.format",
	"metrics-addr":        "metrics.addr",
	"sweep-interval":      "sessions.sweep_interval",
}

// RegisterFlags adds the configuration override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	fs.String("codes-backend", d.Codes.Backend, "verification code storage: postgres, redis or memory")
	fs.String("redis-url", "", "Redis URL for the redis code backend (default $REDIS_URL)")
	fs.Duration("code-ttl", d.Codes.TTL, "verification code lifetime")
	fs.Duration("resend-window", d.Codes.ResendWindow, "minimum gap between codes for one phone")
	fs.String("fixed-code", "", "issue this code instead of a random one (testing only)")
	fs.String("registration-policy", d.Auth.RegistrationPolicy, "code login for unknown phones: auto or explicit")
	fs.String("log-format", d.Log.Format, "log format: json or text")
	fs.String("metrics-addr", d.Metrics.Addr, "observability server listen address")
	fs.Duration("sweep-interval", d.Sessions.SweepInterval, "expired session purge interval")
}

// Load builds a Config. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	envFallback(k, "database.url", "DATABASE_URL")
	envFallback(k, "codes.redis_url", "REDIS_URL")

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	d := Defaults()
	values := map[string]any{
		"codes.backend":            d.Codes.Backend,
		"codes.ttl":                d.Codes.TTL,
		"codes.resend_window":      d.Codes.ResendWindow,
		"codes.retention":          d.Codes.Retention,
		"auth.registration_policy": d.Auth.RegistrationPolicy,
		"log.format":               d.Log.Format,
		"metrics.addr":             d.Metrics.Addr,
		"sessions.sweep_interval":  d.Sessions.SweepInterval,
	}
	for key, val := range values {
		if err := k.Set(key, val); err != nil {
			return oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}
	return nil
}

// envFallback fills key from the environment when nothing else set it.
func envFallback(k *koanf.Koanf, key, env string) {
	if k.String(key) != "" {
		return
	}
	if v := os.Getenv(env); v != "" {
		_ = k.Set(key, v) //nolint:errcheck // Set only fails on a nil map
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Codes.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "database.url").
				Errorf("database url is required for the postgres code backend")
		}
	case BackendRedis:
		if c.Codes.RedisURL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "codes.redis_url").
				Errorf("redis url is required for the redis code backend")
		}
	case BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "codes.backend").
			Errorf("unknown code backend %q", c.Codes.Backend)
	}

	if c.Codes.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "codes.ttl").Errorf("code ttl must be positive")
	}
	if c.Codes.ResendWindow <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "codes.resend_window").Errorf("resend window must be positive")
	}
	if c.Codes.Backend == BackendRedis && c.Codes.Retention < max(c.Codes.TTL, c.Codes.ResendWindow) {
		return oops.Code("CONFIG_INVALID").
			With("key", "codes.retention").
			Errorf("retention must cover the code ttl and the resend window")
	}
	if c.Codes.FixedCode != "" {
		if _, err := auth.NewFixedCodeGenerator(c.Codes.FixedCode); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("key", "codes.fixed_code").
				Errorf("fixed code must be %d digits", auth.CodeLength)
		}
	}
	if !auth.RegistrationPolicy(c.Auth.RegistrationPolicy).Valid() {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.registration_policy").
			Errorf("unknown registration policy %q", c.Auth.RegistrationPolicy)
	}
	if c.Log.Format != LogFormatJSON && c.Log.Format != LogFormatText {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Sessions.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "sessions.sweep_interval").Errorf("sweep interval must be positive")
	}
	return nil
}

// UsesPostgres reports whether the configuration needs a database pool.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}
