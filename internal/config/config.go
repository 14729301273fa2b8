// Package config holds the tool's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all rapid configuration.
type Config struct {
	Inject   InjectConfig  `yaml:"inject"`
	Parse    ParseConfig   `yaml:"parse"`
	Database DBConfig      `yaml:"database"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InjectConfig configures campaign generation.
type InjectConfig struct {
	Seed         int64  `yaml:"seed"`
	NumFlips     int    `yaml:"num_flips"`
	RetryBound   int    `yaml:"retry_bound"`
	AllowRepeats bool   `yaml:"allow_repeats"`
	OutputDir    string `yaml:"output_dir"`
}

// ParseConfig configures log classification.
type ParseConfig struct {
	Workers    int    `yaml:"workers"`
	FormatFile string `yaml:"format_file"`
	RuleFiles  string `yaml:"rule_files"`
}

// DBConfig configures the results database.
type DBConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig configures the log staleness monitor.
type MonitorConfig struct {
	AlertInterval string `yaml:"alert_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Inject: InjectConfig{
			Seed:       1,
			NumFlips:   1000,
			RetryBound: 10000,
			OutputDir:  "campaign",
		},
		Parse: ParseConfig{
			Workers: 0, // 0 means one worker per CPU
		},
		Database: DBConfig{
			Path: "results.db",
		},
		Monitor: MonitorConfig{
			AlertInterval: "50s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the config at path, falling back to defaults if the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// always wins over the file so CI can redirect paths without editing it.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAPID_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("RAPID_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RAPID_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Inject.Seed = seed
		}
	}
	if v := os.Getenv("RAPID_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Parse.Workers = n
		}
	}
}
