// Package config loads CLI settings from a YAML file, a .env file and FLOWDECK_* variables,
// in increasing order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is not an error.
const DefaultPath = "flowdeck.yaml"

// EnvPrefix prefixes every override variable.
const EnvPrefix = "FLOWDECK_"

// Draft store backends.
const (
	DraftsMemory = "memory"
	DraftsFile   = "file"
	DraftsRedis  = "redis"
)

// Config is the CLI configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Poll    PollConfig    `yaml:"poll"`
	Drafts  DraftsConfig  `yaml:"drafts"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxPolls int           `yaml:"max_polls"`
}

type DraftsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	// EncryptionKey enables encryption at rest. Base64 of 32 bytes.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys still open drafts sealed before the key was rotated.
	FallbackKeys []string `yaml:"fallback_keys"`
}

// Keys decodes the encryption keys. Both are nil when encryption is off.
func (d DraftsConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if d.EncryptionKey == "" {
		return nil, nil, nil
	}
	decode := func(name, v string) ([]byte, error) {
		k, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(k) != 32 {
			return nil, fmt.Errorf("%s must decode to 32 bytes; got %d", name, len(k))
		}
		return k, nil
	}
	if active, err = decode("drafts.encryption_key", d.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for i, v := range d.FallbackKeys {
		k, err := decode(fmt.Sprintf("drafts.fallback_keys[%d]", i), v)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API:     APIConfig{BaseURL: "http://localhost:8000/api/v1", Timeout: 30 * time.Second},
		Poll:    PollConfig{Interval: time.Second},
		Drafts:  DraftsConfig{Backend: DraftsFile, Dir: ".flowdeck/drafts"},
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "flowdeck:draft:"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Addr: ":2112"},
	}
}

// Load builds the configuration. Values in path override the defaults and FLOWDECK_*
// variables (including those from a .env file in the working directory) override both.
// An empty path reads DefaultPath if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	// Existing environment variables win over .env entries.
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Drafts.Backend {
	case DraftsMemory, DraftsFile, DraftsRedis:
	default:
		return fmt.Errorf("drafts.backend must be one of memory, file, redis; got %q", c.Drafts.Backend)
	}
	if _, _, err := c.Drafts.Keys(); err != nil {
		return err
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive; got %s", c.Poll.Interval)
	}
	if c.Poll.MaxPolls < 0 {
		return fmt.Errorf("poll.max_polls cannot be negative; got %d", c.Poll.MaxPolls)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("API_BASE_URL", &cfg.API.BaseURL)
	str("DRAFTS_BACKEND", &cfg.Drafts.Backend)
	str("DRAFTS_DIR", &cfg.Drafts.Dir)
	str("DRAFTS_ENCRYPTION_KEY", &cfg.Drafts.EncryptionKey)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("REDIS_PREFIX", &cfg.Redis.Prefix)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	return errors.Join(
		dur("API_TIMEOUT", &cfg.API.Timeout),
		dur("POLL_INTERVAL", &cfg.Poll.Interval),
		num("POLL_MAX_POLLS", &cfg.Poll.MaxPolls),
		num("REDIS_DB", &cfg.Redis.DB),
		dur("REDIS_TTL", &cfg.Redis.TTL),
	)
}
