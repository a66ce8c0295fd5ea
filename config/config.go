// Package config loads editor settings from YAML with sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viceroymiami/chatgpt-media-flow/persist"
	"github.com/viceroymiami/chatgpt-media-flow/replicate"
)

// Config is the top-level editor configuration.
type Config struct {
	Store     persist.Config   `yaml:"store" json:"store"`
	Replicate replicate.Config `yaml:"replicate" json:"replicate"`
	LogLevel  string           `yaml:"log_level" json:"log_level"`
}

// Default returns the configuration used when no file is provided:
// in-memory persistence and the public proxy endpoint.
func Default() Config {
	return Config{
		Store: persist.DefaultConfig(),
		Replicate: replicate.Config{
			ProxyURL: "http://localhost:8787",
			Timeout:  5 * time.Minute,
		},
		LogLevel: "info",
	}
}

// apiKeyEnv overrides the configured Replicate API key. The key is the
// one secret in the file, so it alone gets an environment escape hatch.
const apiKeyEnv = "REPLICATE_API_KEY"

// Load reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged. REPLICATE_API_KEY, when set, wins
// over the file's key.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.Replicate.APIKey = key
	}
	return cfg, nil
}
