// Package config provides centralized configuration management for the ETL
// pipeline. It loads configuration from a YAML file with env-var overrides
// for secrets and validates all settings on load to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Item canonicalization strategies for the item dimension.
const (
	StrategyFirstOccurrence = "first-occurrence"
	StrategyMode            = "mode"
)

// Config holds all pipeline configuration.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Logging    LoggingConfig    `yaml:"logging"`
	Paths      PathsConfig      `yaml:"paths"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Columns    ColumnMap        `yaml:"column_map"`
	Validation ValidationConfig `yaml:"validation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// ProjectConfig identifies the pipeline run in logs and audit records.
type ProjectConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format"`
}

// PathsConfig holds filesystem locations for intermediate artifacts.
type PathsConfig struct {
	// ProcessedDir receives the cleaned, dimension, validated and rejected
	// CSV artifacts written during a run.
	ProcessedDir string `yaml:"processed_dir"`
}

// DataSourceConfig describes the raw transactional export.
type DataSourceConfig struct {
	// CSVPath is the path to the raw export file.
	CSVPath string `yaml:"csv_path"`

	// Delimiter is the CSV field separator (default: ",").
	Delimiter string `yaml:"delimiter"`

	// DateColumn is the raw column holding the transaction date.
	DateColumn string `yaml:"date_column"`

	// DateLayout is the Go time layout used to parse DateColumn values,
	// e.g. "2006-01-02" or "02/01/2006".
	DateLayout string `yaml:"date_format"`
}

// ColumnMap maps logical field names to the raw export's column headers.
type ColumnMap struct {
	Date               string `yaml:"date"`
	ItemCode           string `yaml:"item_code"`
	ItemID             string `yaml:"item_id"`
	ItemName           string `yaml:"item_name"`
	Category           string `yaml:"category"`
	Version            string `yaml:"version"`
	BuyerID            string `yaml:"buyer_id"`
	TransactionID      string `yaml:"transaction_id"`
	FinalQuantity      string `yaml:"final_quantity"`
	TotalRevenue       string `yaml:"total_revenue"`
	PriceReductions    string `yaml:"price_reductions"`
	Refunds            string `yaml:"refunds"`
	FinalRevenue       string `yaml:"final_revenue"`
	SalesTax           string `yaml:"sales_tax"`
	OverallRevenue     string `yaml:"overall_revenue"`
	RefundedItemCount  string `yaml:"refunded_item_count"`
	PurchasedItemCount string `yaml:"purchased_item_count"`
}

// ValidationConfig controls the fact-row validation step.
type ValidationConfig struct {
	// Tolerance is the absolute threshold applied to the two monetary
	// balance checks. Must be non-negative.
	Tolerance float64 `yaml:"tolerance"`

	// MaxErrorRate is the drop-rate ceiling in [0,1]. A run whose validation
	// drop rate strictly exceeds it fails before any persistence.
	MaxErrorRate float64 `yaml:"max_error_rate"`

	Checks ChecksConfig `yaml:"checks"`
}

// ChecksConfig toggles the individual validation checks.
type ChecksConfig struct {
	RevenueBalance      bool `yaml:"revenue_balance"`
	OverallBalance      bool `yaml:"overall_balance"`
	QuantityBalance     bool `yaml:"quantity_balance"`
	RefundedNonpositive bool `yaml:"refunded_nonpositive"`
}

// PipelineConfig holds run-level behavior switches.
type PipelineConfig struct {
	// DryRun computes and reports all artifacts without writing to the
	// warehouse.
	DryRun bool `yaml:"dry_run"`

	// ChunkSize is the number of rows per insert batch (default: 1000).
	ChunkSize int `yaml:"chunk_size"`

	Canonicalize CanonicalizeConfig `yaml:"canonicalize"`
}

// CanonicalizeConfig toggles attribute canonicalization and selects the item
// dimension conflict-resolution strategy.
type CanonicalizeConfig struct {
	ItemName bool `yaml:"item_name"`
	Category bool `yaml:"category"`
	Version  bool `yaml:"version"`

	// ItemAttributes selects how conflicting item attribute observations are
	// resolved: "first-occurrence" or "mode".
	ItemAttributes string `yaml:"item_attributes"`
}

// PostgresConfig holds warehouse connection settings.
// The password is resolved from the DB_PASSWORD environment variable first,
// falling back to the value configured here.
type PostgresConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
}

// URL builds a PostgreSQL connection string from the settings.
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.DataSource.CSVPath == "" {
		errs = append(errs, "data_source.csv_path is required")
	}
	if len([]rune(c.DataSource.Delimiter)) > 1 {
		errs = append(errs, fmt.Sprintf("data_source.delimiter %q must be a single character", c.DataSource.Delimiter))
	}
	if c.DataSource.DateLayout == "" {
		errs = append(errs, "data_source.date_format is required")
	}

	for _, col := range []struct {
		name  string
		value string
	}{
		{"date", c.Columns.Date},
		{"item_code", c.Columns.ItemCode},
		{"item_id", c.Columns.ItemID},
		{"item_name", c.Columns.ItemName},
		{"category", c.Columns.Category},
		{"version", c.Columns.Version},
		{"buyer_id", c.Columns.BuyerID},
		{"transaction_id", c.Columns.TransactionID},
		{"final_quantity", c.Columns.FinalQuantity},
		{"total_revenue", c.Columns.TotalRevenue},
		{"price_reductions", c.Columns.PriceReductions},
		{"refunds", c.Columns.Refunds},
		{"final_revenue", c.Columns.FinalRevenue},
		{"sales_tax", c.Columns.SalesTax},
		{"overall_revenue", c.Columns.OverallRevenue},
		{"refunded_item_count", c.Columns.RefundedItemCount},
		{"purchased_item_count", c.Columns.PurchasedItemCount},
	} {
		if col.value == "" {
			errs = append(errs, fmt.Sprintf("column_map.%s is required", col.name))
		}
	}

	if c.Validation.Tolerance < 0 {
		errs = append(errs, fmt.Sprintf("validation.tolerance (%g) must be non-negative", c.Validation.Tolerance))
	}
	if c.Validation.MaxErrorRate < 0 || c.Validation.MaxErrorRate > 1 {
		errs = append(errs, fmt.Sprintf("validation.max_error_rate (%g) must be in [0,1]", c.Validation.MaxErrorRate))
	}

	switch c.Pipeline.Canonicalize.ItemAttributes {
	case StrategyFirstOccurrence, StrategyMode:
	default:
		errs = append(errs, fmt.Sprintf("pipeline.canonicalize.item_attributes (%q) must be %q or %q",
			c.Pipeline.Canonicalize.ItemAttributes, StrategyFirstOccurrence, StrategyMode))
	}
	if c.Pipeline.ChunkSize <= 0 {
		errs = append(errs, "pipeline.chunk_size must be positive")
	}

	if !c.Pipeline.DryRun {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres.host is required")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres.database is required")
		}
		if c.Postgres.Schema == "" {
			errs = append(errs, "postgres.schema is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
