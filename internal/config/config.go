package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/pipeline"
)

// FileName is the default config file name.
const FileName = "equitax.yaml"

// Rate sources.
const (
	SourcePTAX  = "ptax"
	SourceTable = "table"
	SourceStore = "store"
)

// Config represents the top-level equitax.yaml configuration.
type Config struct {
	Currency CurrencyConfig `yaml:"currency"`
	Tax      TaxConfig      `yaml:"tax"`
	Rates    RatesConfig    `yaml:"rates"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
	Git      GitConfig      `yaml:"git"`

	// dir is where the file was loaded from; relative paths resolve against it.
	dir string
}

// CurrencyConfig names the currency shares are priced in and the currency
// tax is assessed in.
type CurrencyConfig struct {
	Foreign string `yaml:"foreign"`
	Local   string `yaml:"local"`
}

// TaxConfig selects the tax policy.
type TaxConfig struct {
	Method string `yaml:"method"`
	Rate   string `yaml:"rate"` // decimal fraction, "0.15"
}

// RatesConfig controls exchange rate resolution.
type RatesConfig struct {
	Source       string     `yaml:"source"`
	LookbackDays int        `yaml:"lookback_days"`
	BuySide      string     `yaml:"buy_side"`
	SellSide     string     `yaml:"sell_side"`
	TablePath    string     `yaml:"table_path,omitempty"`
	StorePath    string     `yaml:"store_path,omitempty"`
	PTAX         PTAXConfig `yaml:"ptax"`
}

// PTAXConfig configures the central bank client.
type PTAXConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Retries           int           `yaml:"retries"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// AuditConfig controls the run log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// GitConfig controls committing outputs when the project is a git repository.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads an equitax.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for EUR-priced shares taxed in BRL at a flat 15%,
// converted at official PTAX rates.
func Default() *Config {
	return &Config{
		Currency: CurrencyConfig{
			Foreign: "EUR",
			Local:   "BRL",
		},
		Tax: TaxConfig{
			Method: pipeline.FlatRate.String(),
			Rate:   "0.15",
		},
		Rates: RatesConfig{
			Source:       SourcePTAX,
			LookbackDays: fxrate.DefaultLookbackDays,
			BuySide:      string(fxrate.Bid),
			SellSide:     string(fxrate.Ask),
			TablePath:    "rates.csv",
			StorePath:    "rates.db",
			PTAX: PTAXConfig{
				BaseURL:           fxrate.DefaultPTAXBaseURL,
				Timeout:           10 * time.Second,
				RequestsPerSecond: 5,
				Retries:           3,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Audit: AuditConfig{
			Path: "equitax-runs.csv",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "equitax",
			AuthorEmail: "equitax@localhost",
		},
	}
}

// Environment variables consulted by ApplyEnv.
const (
	EnvLogLevel    = "EQUITAX_LOG_LEVEL"
	EnvRatesSource = "EQUITAX_RATES_SOURCE"
	EnvPTAXURL     = "EQUITAX_PTAX_URL"
	EnvTaxRate     = "EQUITAX_TAX_RATE"
	EnvLookback    = "EQUITAX_LOOKBACK_DAYS"
)

// ApplyEnv loads the given .env files (or ./.env), ignoring missing ones,
// and lets EQUITAX_* variables override the file settings.
func (c *Config) ApplyEnv(files ...string) error {
	_ = godotenv.Load(files...)

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvRatesSource); v != "" {
		c.Rates.Source = v
	}
	if v := os.Getenv(EnvPTAXURL); v != "" {
		c.Rates.PTAX.BaseURL = v
	}
	if v := os.Getenv(EnvTaxRate); v != "" {
		c.Tax.Rate = v
	}
	if v := os.Getenv(EnvLookback); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLookback, err)
		}
		c.Rates.LookbackDays = n
	}
	return nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	for _, cur := range []string{c.Currency.Foreign, c.Currency.Local} {
		if !isCurrencyCode(cur) {
			return fmt.Errorf("currency %q must be a three-letter ISO code", cur)
		}
	}
	if strings.EqualFold(c.Currency.Foreign, c.Currency.Local) {
		return fmt.Errorf("foreign and local currency are both %s", c.Currency.Local)
	}

	if _, err := c.Pipeline(); err != nil {
		return err
	}

	switch c.Rates.Source {
	case SourcePTAX:
		if !strings.EqualFold(c.Currency.Local, "BRL") {
			return fmt.Errorf("rate source %s only quotes BRL, not %s", SourcePTAX, c.Currency.Local)
		}
		if c.Rates.PTAX.Retries < 0 {
			return fmt.Errorf("ptax retries must not be negative")
		}
	case SourceTable:
		if c.Rates.TablePath == "" {
			return fmt.Errorf("rate source %s needs rates.table_path", SourceTable)
		}
	case SourceStore:
		if c.Rates.StorePath == "" {
			return fmt.Errorf("rate source %s needs rates.store_path", SourceStore)
		}
	default:
		return fmt.Errorf("unknown rate source %q", c.Rates.Source)
	}
	if c.Rates.LookbackDays < 0 {
		return fmt.Errorf("lookback_days %d must not be negative", c.Rates.LookbackDays)
	}
	if c.Git.AutoCommit && (c.Git.AuthorName == "" || c.Git.AuthorEmail == "") {
		return fmt.Errorf("git.auto_commit needs author_name and author_email")
	}
	return nil
}

// Pipeline converts the tax and quote settings into a pipeline.Config.
func (c *Config) Pipeline() (pipeline.Config, error) {
	method, err := pipeline.ParseTaxMethod(c.Tax.Method)
	if err != nil {
		return pipeline.Config{}, err
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(c.Tax.Rate))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("parsing tax rate %q: %w", c.Tax.Rate, err)
	}
	buy, err := fxrate.ParseSide(c.Rates.BuySide)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("buy_side: %w", err)
	}
	sell, err := fxrate.ParseSide(c.Rates.SellSide)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("sell_side: %w", err)
	}

	pc := pipeline.Config{TaxMethod: method, TaxRate: rate, BuySide: buy, SellSide: sell}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}

// PTAXClientConfig returns the settings for fxrate.NewPTAXClient.
func (c *Config) PTAXClientConfig() fxrate.PTAXConfig {
	return fxrate.PTAXConfig{
		BaseURL:           c.Rates.PTAX.BaseURL,
		Timeout:           c.Rates.PTAX.Timeout,
		RequestsPerSecond: c.Rates.PTAX.RequestsPerSecond,
		Retries:           c.Rates.PTAX.Retries,
	}
}

// Dir returns the directory the config was loaded from, or "" for a
// config that was never loaded.
func (c *Config) Dir() string { return c.dir }

// Path resolves p against the directory the config was loaded from.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
