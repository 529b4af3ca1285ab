// Package config defines the configuration model of the querykit CLI.
//
// A config file is JSON or YAML, chosen by extension. Environment variables
// override the connection settings so the same file can be reused across
// environments:
//
//	QUERYKIT_DIALECT  overrides dialect
//	QUERYKIT_DSN      overrides dsn
//
// Example (YAML):
//
//	dialect: pgsql
//	dsn: postgres://localhost/app
//	log: { level: info, format: text }
//	metrics: { backend: pushgateway, url: http://localhost:9091, job: querykit }
//	load: { batch_size: 500, comma: "," }
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvDialect = "QUERYKIT_DIALECT"
	EnvDSN     = "QUERYKIT_DSN"
)

// Config is the top-level document.
type Config struct {
	// Dialect is a dialect name or alias ("pgsql", "postgres", "sqlite3", ...).
	Dialect string `json:"dialect" yaml:"dialect"`

	// DSN is handed to the storage backend. Render-only commands do not need it.
	DSN string `json:"dsn" yaml:"dsn"`

	Log     Log     `json:"log" yaml:"log"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Load    Load    `json:"load" yaml:"load"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend string `json:"backend" yaml:"backend"`

	// URL is the Pushgateway URL or the DogStatsD address.
	URL string `json:"url" yaml:"url"`

	// Job names the Pushgateway job.
	Job string `json:"job" yaml:"job"`

	// Namespace and Tags are used by the datadog backend.
	Namespace string   `json:"namespace" yaml:"namespace"`
	Tags      []string `json:"tags" yaml:"tags"`
}

// Load configures CSV bulk loads.
type Load struct {
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
	Comma     string `json:"comma" yaml:"comma"`

	// Null is the field text loaded as SQL NULL. Empty means never.
	Null string `json:"null_value" yaml:"null_value"`
}

// CommaRune returns the CSV delimiter, defaulting to ','.
func (l Load) CommaRune() rune {
	if l.Comma == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(l.Comma)
	return r
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Log:     Log{Level: "info", Format: "text"},
		Metrics: Metrics{Backend: "none", Job: "querykit"},
		Load:    Load{BatchSize: 500, Comma: ","},
	}
}

// ReadFile reads path on top of Default and applies environment overrides.
// An empty path yields the defaults plus the environment.
func ReadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := Decode(data, filepath.Ext(path), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Decode unmarshals data into cfg. ext selects the format: ".json" or
// ".yaml"/".yml". Unknown keys are rejected in both formats.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", ext)
	}
}

// ApplyEnv overrides the connection settings from the environment. lookup
// has the signature of os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDialect); ok && v != "" {
		c.Dialect = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.DSN = v
	}
}

// NewLogger builds a slog.Logger writing to w according to l.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: log.format %q (want text or json)", l.Format)
	}
}
