// Package config loads service configuration from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// #region config
// Config is the runtime configuration for the service and CLI.
type Config struct {
	ListenAddr   string  `yaml:"listen_addr"`
	DBPath       string  `yaml:"db_path"`
	LogLevel     string  `yaml:"log_level"`
	DefaultAlpha float64 `yaml:"default_alpha"`
	TargetLift   float64 `yaml:"target_lift"`
	OpenAIKey    string  `yaml:"openai_key"`
	OpenAIModel  string  `yaml:"openai_model"`
}

// Default returns the configuration used when no file or environment is set.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		DBPath:       "liftgate.db",
		LogLevel:     "info",
		DefaultAlpha: 0.05,
		TargetLift:   0.0,
		OpenAIModel:  "gpt-4o-mini",
	}
}

// #endregion config

// #region load
// Load reads the YAML file at path when it exists, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.ListenAddr = envOr("LIFTGATE_ADDR", cfg.ListenAddr)
	cfg.DBPath = envOr("LIFTGATE_DB", cfg.DBPath)
	cfg.LogLevel = envOr("LIFTGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.OpenAIKey = envOr("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.OpenAIModel = envOr("OPENAI_MODEL", cfg.OpenAIModel)

	var err error
	if cfg.DefaultAlpha, err = envFloatOr("LIFTGATE_ALPHA", cfg.DefaultAlpha); err != nil {
		return Config{}, err
	}
	if cfg.TargetLift, err = envFloatOr("LIFTGATE_TARGET_LIFT", cfg.TargetLift); err != nil {
		return Config{}, err
	}

	if cfg.DefaultAlpha <= 0 || cfg.DefaultAlpha >= 1 {
		return Config{}, fmt.Errorf("default alpha %v not in (0,1)", cfg.DefaultAlpha)
	}
	return cfg, nil
}

// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloatOr(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

// #endregion helpers
