// Package config handles configuration loading and validation: a YAML
// file, environment-variable expansion, and hand-rolled per-section
// Validate methods rather than a struct-tag validator library.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"hedgegrid/internal/core"
)

// Config is the complete configuration tree.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Sides     SidesConfig     `yaml:"sides"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr             string  `yaml:"addr"`
	CORSAllowOrigin  string  `yaml:"cors_allow_origin"`
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
}

// EngineConfig contains decision-engine tuning.
type EngineConfig struct {
	Symbol            string `yaml:"symbol"`
	GraceWindowSecs   int    `yaml:"grace_window_secs"`
	CyclicOnByDefault bool   `yaml:"cyclic_on_by_default"`
}

// StoreConfig selects and configures the durable state store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`
}

// SidesConfig holds each side's initial operator settings.
type SidesConfig struct {
	Buy  SideSettings `yaml:"buy"`
	Sell SideSettings `yaml:"sell"`
}

// SideSettings mirrors core.UserSettings in YAML-friendly form.
type SideSettings struct {
	LimitPrice string           `yaml:"limit_price"`
	TPType     string           `yaml:"tp_type"`
	TPValue    string           `yaml:"tp_value"`
	HedgeValue string           `yaml:"hedge_value"`
	Rows       []SideRow        `yaml:"rows"`
}

// SideRow mirrors core.GridRow in YAML-friendly form.
type SideRow struct {
	Index     int    `yaml:"index"`
	DollarGap string `yaml:"dollar_gap"`
	Lots      string `yaml:"lots"`
	Alert     bool   `yaml:"alert"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig contains OTel/Prometheus settings.
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// Load reads filename, expands environment variables, parses YAML, and
// validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate runs every section's check, collecting all failures instead of
// stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateServer(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateEngine(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateStore(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Sides.Buy.validate("sides.buy"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Sides.Sell.validate("sides.sell"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateLogging(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return ValidationError{Field: "server.addr", Message: "required"}
	}
	if c.Server.RateLimitPerSec <= 0 {
		return ValidationError{Field: "server.rate_limit_per_sec", Value: c.Server.RateLimitPerSec, Message: "must be > 0"}
	}
	if c.Server.RateLimitBurst <= 0 {
		return ValidationError{Field: "server.rate_limit_burst", Value: c.Server.RateLimitBurst, Message: "must be > 0"}
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Symbol == "" {
		return ValidationError{Field: "engine.symbol", Message: "required"}
	}
	if c.Engine.GraceWindowSecs <= 0 {
		return ValidationError{Field: "engine.grace_window_secs", Value: c.Engine.GraceWindowSecs, Message: "must be > 0"}
	}
	return nil
}

func (c *Config) validateStore() error {
	if !contains([]string{"file", "sqlite"}, c.Store.Backend) {
		return ValidationError{Field: "store.backend", Value: c.Store.Backend, Message: "must be one of: file, sqlite"}
	}
	if c.Store.Path == "" {
		return ValidationError{Field: "store.path", Message: "required"}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !contains([]string{"", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}, c.Logging.Level) {
		return ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: "must be one of: DEBUG, INFO, WARN, ERROR, FATAL"}
	}
	return nil
}

func (s SideSettings) validate(field string) error {
	if _, _, err := parseDecimal(field+".limit_price", s.LimitPrice); err != nil {
		return err
	}
	if _, ok := core.ParseTPType(s.TPType); !ok {
		return ValidationError{Field: field + ".tp_type", Value: s.TPType, Message: "unknown tp_type"}
	}
	if _, _, err := parseDecimal(field+".tp_value", s.TPValue); err != nil {
		return err
	}
	if _, _, err := parseDecimal(field+".hedge_value", s.HedgeValue); err != nil {
		return err
	}
	if len(s.Rows) == 0 {
		return ValidationError{Field: field + ".rows", Message: "at least one row (row 0) is required"}
	}
	for i, r := range s.Rows {
		if r.Index != i {
			return ValidationError{Field: fmt.Sprintf("%s.rows[%d].index", field, i), Value: r.Index, Message: "rows must be contiguous starting at 0"}
		}
		if _, _, err := parseDecimal(fmt.Sprintf("%s.rows[%d].dollar_gap", field, i), r.DollarGap); err != nil {
			return err
		}
		if _, _, err := parseDecimal(fmt.Sprintf("%s.rows[%d].lots", field, i), r.Lots); err != nil {
			return err
		}
	}
	return nil
}

func parseDecimal(field, raw string) (decimal.Decimal, bool, error) {
	if raw == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, ValidationError{Field: field, Value: raw, Message: "not a valid decimal"}
	}
	return d, true, nil
}

// ToUserSettings converts the YAML-friendly SideSettings into core.UserSettings.
// Callers have already run Validate, so parse errors are not expected.
func (s SideSettings) ToUserSettings() core.UserSettings {
	limit, _ := decimal.NewFromString(s.LimitPrice)
	tpType, _ := core.ParseTPType(s.TPType)
	tpValue, _ := decimal.NewFromString(s.TPValue)
	hedgeValue, _ := decimal.NewFromString(s.HedgeValue)

	rows := make([]core.GridRow, len(s.Rows))
	for i, r := range s.Rows {
		gap, _ := decimal.NewFromString(r.DollarGap)
		lots, _ := decimal.NewFromString(r.Lots)
		rows[i] = core.GridRow{Index: r.Index, DollarGap: gap, Lots: lots, Alert: r.Alert}
	}

	return core.UserSettings{
		LimitPrice: limit,
		TPType:     tpType,
		TPValue:    tpValue,
		HedgeValue: hedgeValue,
		Rows:       rows,
	}
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
