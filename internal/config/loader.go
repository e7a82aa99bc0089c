package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the YAML file at path.
// It applies defaults for unset values, resolves secrets from the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Parse reads and resolves the configuration without validating it. Callers
// that apply command-line overrides validate afterwards; everyone else should
// use Load.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// applyDefaults fills in values the YAML file may omit.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.DataSource.Delimiter == "" {
		c.DataSource.Delimiter = ","
	}
	if c.DataSource.DateColumn == "" {
		c.DataSource.DateColumn = c.Columns.Date
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 1000
	}
	if c.Pipeline.Canonicalize.ItemAttributes == "" {
		c.Pipeline.Canonicalize.ItemAttributes = StrategyFirstOccurrence
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
}

// applyEnv resolves secrets that must not live in the config file.
// DB_PASSWORD takes precedence over postgres.password, and DATABASE_URL-style
// overrides are intentionally not supported: connection parts stay explicit.
func (c *Config) applyEnv() {
	if pw := os.Getenv("DB_PASSWORD"); pw != "" {
		c.Postgres.Password = pw
	}
}
