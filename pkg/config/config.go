// Package config provides the configuration value passed into databox and
// script engine constructors. Nothing here is global: callers build a Config
// (usually from Default), optionally overlay a YAML file, and hand it down.
//
// The configuration is organized into sections:
//   - Parse: delimiter detection and boundary detection
//   - Save: ASCII/binary output, padding, backups
//   - Script: recursion cap and extra script globals
//   - Legacy: inconsistent column names mapped to canonical ones
//   - Logging: zap logger settings
//   - Observability: metrics and tracing switches
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Save.Binary = "float32"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"

	"github.com/labkit/databox/pkg/logger"
)

// Config is the complete databox configuration.
type Config struct {
	Parse         ParseConfig         `yaml:"parse" json:"parse" mapstructure:"parse"`
	Save          SaveConfig          `yaml:"save" json:"save" mapstructure:"save"`
	Script        ScriptConfig        `yaml:"script" json:"script" mapstructure:"script"`
	Legacy        LegacyConfig        `yaml:"legacy" json:"legacy" mapstructure:"legacy"`
	Logging       logger.Config       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ParseConfig controls how files are split into headers and columns.
type ParseConfig struct {
	// Delimiter forces a token delimiter; empty means auto-detect
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// SampleLines bounds how many lines the delimiter resolver inspects
	SampleLines int `yaml:"sample_lines" json:"sample_lines" mapstructure:"sample_lines"`
	// MmapThreshold is the file size in bytes from which files are memory
	// mapped instead of read; 0 never maps
	MmapThreshold int64 `yaml:"mmap_threshold" json:"mmap_threshold" mapstructure:"mmap_threshold"`
}

// SaveConfig controls the on-disk output.
type SaveConfig struct {
	// Delimiter used when the databox has none (whitespace-delimited input)
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// Binary selects float16, float32 or float64 payloads; empty writes ASCII
	Binary string `yaml:"binary" json:"binary" mapstructure:"binary"`
	// PadToken fills short columns in ASCII rows ("nan" or "_")
	PadToken string `yaml:"pad_token" json:"pad_token" mapstructure:"pad_token"`
	// ForceOverwrite skips the .backup rename of an existing target
	ForceOverwrite bool `yaml:"force_overwrite" json:"force_overwrite" mapstructure:"force_overwrite"`
}

// ScriptConfig controls the expression engine.
type ScriptConfig struct {
	// MaxDepth caps where-binding recursion
	MaxDepth int `yaml:"max_depth" json:"max_depth" mapstructure:"max_depth"`
	// Globals are extra numeric names visible to every script
	Globals map[string]float64 `yaml:"globals" json:"globals" mapstructure:"globals"`
}

// LegacyConfig holds compatibility tables.
type LegacyConfig struct {
	// ColumnRenames maps inconsistent column names to their canonical name
	ColumnRenames map[string]string `yaml:"column_renames" json:"column_renames" mapstructure:"column_renames"`
}

// ObservabilityConfig contains monitoring switches.
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// Default returns a Config with the values the databox uses when nothing
// else is configured.
func Default() *Config {
	return &Config{
		Parse: ParseConfig{
			SampleLines:   1000,
			MmapThreshold: 8 << 20,
		},
		Save: SaveConfig{
			Delimiter: "\t",
			PadToken:  "nan",
		},
		Script: ScriptConfig{
			MaxDepth: 1000,
			Globals:  map[string]float64{},
		},
		Legacy: LegacyConfig{
			ColumnRenames: map[string]string{},
		},
		Logging: logger.Config{
			Level:    "warn",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			TracingSampleRate: 1.0,
		},
	}
}

var validBinary = map[string]bool{"": true, "float16": true, "float32": true, "float64": true}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Parse.SampleLines < 0 {
		return fmt.Errorf("parse.sample_lines cannot be negative")
	}
	if c.Parse.MmapThreshold < 0 {
		return fmt.Errorf("parse.mmap_threshold cannot be negative")
	}
	switch c.Parse.Delimiter {
	case "", " ", "\t", ",", ";", "|":
	default:
		if len(c.Parse.Delimiter) > 1 {
			return fmt.Errorf("parse.delimiter must be a single character, got %q", c.Parse.Delimiter)
		}
	}
	if !validBinary[c.Save.Binary] {
		return fmt.Errorf("save.binary must be float16, float32 or float64, got %q", c.Save.Binary)
	}
	if c.Save.PadToken != "nan" && c.Save.PadToken != "_" {
		return fmt.Errorf("save.pad_token must be \"nan\" or \"_\", got %q", c.Save.PadToken)
	}
	if c.Script.MaxDepth <= 0 {
		return fmt.Errorf("script.max_depth must be positive")
	}
	for old, canonical := range c.Legacy.ColumnRenames {
		if old == "" || canonical == "" {
			return fmt.Errorf("legacy.column_renames entries must be non-empty")
		}
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be within [0, 1]")
	}
	return nil
}

// SaveDelimiter returns the delimiter to write when the databox has none.
func (s *SaveConfig) SaveDelimiter() string {
	if s.Delimiter == "" {
		return "\t"
	}
	return s.Delimiter
}
