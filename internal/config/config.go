// Package config loads pickem settings from defaults, an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fortuna/pickem/internal/tank01"
)

// Config holds every setting the binaries read
type Config struct {
	RapidAPIKey    string        `yaml:"rapid_api_key"`
	RapidAPIHost   string        `yaml:"rapid_api_host"`
	Tank01BaseURL  string        `yaml:"tank01_base_url"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	RESTPort       string        `yaml:"rest_port"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	PreferredBooks []string      `yaml:"preferred_books"`
	GradeLockTTL   time.Duration `yaml:"grade_lock_ttl"`
	GamesCacheTTL  time.Duration `yaml:"games_cache_ttl"`
	MaxRunHistory  int           `yaml:"max_run_history"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Tank01BaseURL: tank01.DefaultBaseURL,
		HTTPTimeout:   30 * time.Second,
		RESTPort:      "8080",
		LogLevel:      "info",
		LogFormat:     "text",
		GradeLockTTL:  5 * time.Minute,
		GamesCacheTTL: time.Minute,
		MaxRunHistory: 100,
	}
}

// Load builds the configuration. The YAML file named by PICKEM_CONFIG is
// applied over the defaults, then a .env file in the working directory
// (if any) is loaded without overriding variables already set, then the
// environment is applied on top.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("PICKEM_CONFIG"), ".env")
}

// LoadFrom is Load with explicit file paths. Empty paths are skipped; a
// missing .env file is not an error.
func LoadFrom(yamlPath, envPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.RapidAPIKey, "RAPID_API_KEY")
	setString(&c.RapidAPIHost, "RAPID_API_HOST")
	setString(&c.Tank01BaseURL, "TANK01_BASE_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.RESTPort, "REST_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	if v := os.Getenv("PREFERRED_BOOKS"); v != "" {
		c.PreferredBooks = splitList(v)
	}

	if v := os.Getenv("MAX_RUN_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid MAX_RUN_HISTORY %q: want a positive integer", v)
		}
		c.MaxRunHistory = n
	}

	for key, dst := range map[string]*time.Duration{
		"HTTP_TIMEOUT":    &c.HTTPTimeout,
		"GRADE_LOCK_TTL":  &c.GradeLockTTL,
		"GAMES_CACHE_TTL": &c.GamesCacheTTL,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
	}
	return nil
}

// Validate reports every missing required key at once
func (c *Config) Validate() error {
	var missing []string
	if c.RapidAPIKey == "" {
		missing = append(missing, "RAPID_API_KEY")
	}
	if c.RapidAPIHost == "" {
		missing = append(missing, "RAPID_API_HOST")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want text or json", c.LogFormat)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
