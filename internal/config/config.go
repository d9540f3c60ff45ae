// Package config loads engine settings from defaults, an optional YAML file,
// an optional .env file and HEALTHOS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvDB              = "HEALTHOS_DB"
	EnvAddr            = "HEALTHOS_ADDR"
	EnvLogLevel        = "HEALTHOS_LOG_LEVEL"
	EnvLearningRate    = "HEALTHOS_LEARNING_RATE"
	EnvConflictPenalty = "HEALTHOS_CONFLICT_PENALTY"
)

// Config contains all engine settings.
type Config struct {
	// Storage locates the SQLite database.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the gRPC listener.
	Server ServerConfig `yaml:"server"`

	// Learning configures the weight updater.
	Learning LearningConfig `yaml:"learning"`

	// Ranking configures the ranker.
	Ranking RankingConfig `yaml:"ranking"`

	// Logging configures the zap logger.
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig locates persisted weights.
type StorageConfig struct {
	// Path is the SQLite file. ":memory:" keeps weights in process memory.
	Path string `yaml:"path"`
}

// ServerConfig configures the transport.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LearningConfig holds update parameters.
type LearningConfig struct {
	// LearningRate scales every boost. Range: (0, 1].
	LearningRate float64 `yaml:"learning_rate"`

	// MaxStep caps a single protocol's change per update; 0 disables.
	MaxStep float64 `yaml:"max_step"`

	// BatchConcurrency bounds parallel users in batch submission.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// RankingConfig holds ranking options.
type RankingConfig struct {
	// ConflictPenalty multiplies the score of a protocol ranked below a
	// conflicting one. 0 disables. Range: [0, 1].
	ConflictPenalty float64 `yaml:"conflict_penalty"`
}

// LoggingConfig sets log verbosity.
type LoggingConfig struct {
	// Level is "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Storage:  StorageConfig{Path: "healthos.db"},
		Server:   ServerConfig{Addr: "127.0.0.1:50061"},
		Learning: LearningConfig{LearningRate: 0.05, BatchConcurrency: 8},
		Ranking:  RankingConfig{ConflictPenalty: 0},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty; envFile may be empty or
// missing. Values already in the environment win over the .env file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}
	if c.Learning.LearningRate <= 0 || c.Learning.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %v", c.Learning.LearningRate)
	}
	if c.Learning.MaxStep < 0 {
		return fmt.Errorf("max_step must be non-negative, got %v", c.Learning.MaxStep)
	}
	if c.Learning.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1, got %d", c.Learning.BatchConcurrency)
	}
	if c.Ranking.ConflictPenalty < 0 || c.Ranking.ConflictPenalty > 1 {
		return fmt.Errorf("conflict_penalty must be between 0 and 1, got %v", c.Ranking.ConflictPenalty)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides applies HEALTHOS_* variables.
func applyEnvOverrides(c *Config) error {
	if v := os.Getenv(EnvDB); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLearningRate); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLearningRate, err)
		}
		c.Learning.LearningRate = f
	}
	if v := os.Getenv(EnvConflictPenalty); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConflictPenalty, err)
		}
		c.Ranking.ConflictPenalty = f
	}
	return nil
}
