// Package config loads the CLI configuration.
//
// The project settings are the shared ProjectConfig from internal/config; the
// CLI adds its own presentation settings and layers environment variables and
// flags on top of the file.
package config

import (
	intconfig "github.com/leapstack-labs/sqlscope/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = intconfig.ProjectConfig

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = intconfig.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
}

// Default CLI values.
const (
	DefaultOutput = "auto" // TTY=text, otherwise JSON
	EnvPrefix     = "SQLSCOPE_"
)
