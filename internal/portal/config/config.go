// Package config loads portal configuration from a YAML file with
// environment-variable overrides. A .env file is honored for local
// development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so values like "15s" parse from both YAML
// scalars and environment variables.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.parse(raw)
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.parse(string(text))
}

func (d *Duration) parse(raw string) error {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all portal settings. Defaults apply first, then the YAML
// file, then environment variables.
type Config struct {
	ListenAddr      string   `yaml:"LISTEN_ADDR" env:"LISTEN_ADDR"`
	BackendBaseURL  string   `yaml:"BACKEND_BASE_URL" env:"BACKEND_BASE_URL"`
	IdentityBaseURL string   `yaml:"IDENTITY_BASE_URL" env:"IDENTITY_BASE_URL"`
	TokenStorePath  string   `yaml:"TOKEN_STORE_PATH" env:"TOKEN_STORE_PATH"`
	RequestTimeout  Duration `yaml:"REQUEST_TIMEOUT" env:"REQUEST_TIMEOUT"`
	LogLevel        string   `yaml:"LOG_LEVEL" env:"LOG_LEVEL"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:      ":8080",
		BackendBaseURL:  "http://localhost:3000",
		IdentityBaseURL: "http://localhost:8081",
		TokenStorePath:  "portal.db",
		RequestTimeout:  Duration(15 * time.Second),
		LogLevel:        "info",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// is absent) and then applies environment overrides on top.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		file, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
