// Package config provides shared configuration types for sqlscope.
// This package is decoupled from CLI concerns and can be used by the LSP
// and the HTTP server to load project configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/pkg/adapter"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type" json:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Database string `koanf:"database" json:"database,omitempty"`

	// Network databases
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty"`
	User     string `koanf:"user" json:"user,omitempty"`
	Password string `koanf:"password" json:"-"`

	Schema string `koanf:"schema" json:"schema,omitempty"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options" json:"options,omitempty"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params" json:"params,omitempty"`
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the target into the adapter's connection config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	if cfg.Type == "duckdb" {
		cfg.Path = t.Database
	}
	return cfg
}

// CatalogConfig configures where column lists come from.
type CatalogConfig struct {
	// File is a static YAML catalog.
	File string `koanf:"file" json:"file,omitempty"`
	// Cache is the SQLite column cache.
	Cache         string `koanf:"cache" json:"cache,omitempty"`
	DefaultSchema string `koanf:"default_schema" json:"default_schema,omitempty"`
	Fold          string `koanf:"fold" json:"fold,omitempty"`
}

// CompletionConfig tunes the completion engine.
type CompletionConfig struct {
	CorrelationDepth int `koanf:"correlation_depth" json:"correlation_depth"`
	MaxItems         int `koanf:"max_items" json:"max_items"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr" json:"addr"`
}

// ProjectConfig holds the project configuration shared by the CLI, the
// LSP and the HTTP server.
type ProjectConfig struct {
	Catalog    CatalogConfig    `koanf:"catalog" json:"catalog"`
	Completion CompletionConfig `koanf:"completion" json:"completion"`
	Server     ServerConfig     `koanf:"server" json:"server"`
	Target     *TargetConfig    `koanf:"target" json:"target,omitempty"`

	// Root is the directory relative paths are resolved against.
	Root string `koanf:"-" json:"root,omitempty"`
}

// EngineOptions converts the completion and catalog settings into engine
// options.
func (c *ProjectConfig) EngineOptions() (completion.Options, error) {
	fold, err := catalog.ParseFold(c.Catalog.Fold)
	if err != nil {
		return completion.Options{}, err
	}
	return completion.Options{
		CorrelationDepth: c.Completion.CorrelationDepth,
		MaxItems:         c.Completion.MaxItems,
		DefaultSchema:    c.DefaultSchema(),
		Fold:             fold,
	}, nil
}

// DefaultSchema is the schema for unqualified tables: the catalog setting,
// else the target's schema.
func (c *ProjectConfig) DefaultSchema() string {
	if c.Catalog.DefaultSchema != "" {
		return c.Catalog.DefaultSchema
	}
	if c.Target != nil {
		return c.Target.Schema
	}
	return ""
}

// Validate checks the configuration values.
func (c *ProjectConfig) Validate() error {
	if _, err := catalog.ParseFold(c.Catalog.Fold); err != nil {
		return err
	}
	if c.Completion.CorrelationDepth < 0 {
		return fmt.Errorf("completion.correlation_depth must not be negative")
	}
	if c.Completion.MaxItems < 0 {
		return fmt.Errorf("completion.max_items must not be negative")
	}
	if c.Target != nil {
		if err := c.Target.Validate(); err != nil {
			return fmt.Errorf("invalid target configuration: %w", err)
		}
	}
	return nil
}
