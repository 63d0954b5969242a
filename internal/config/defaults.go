package config

import (
	"os"
	"path/filepath"
	"regexp"
)

// Default configuration values.
const (
	DefaultCorrelationDepth = 1
	DefaultMaxItems         = 200
	DefaultServerAddr       = "127.0.0.1:7410"
	DefaultFold             = "none"
)

// Defaults returns the default values keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"catalog.fold":                 DefaultFold,
		"completion.correlation_depth": DefaultCorrelationDepth,
		"completion.max_items":         DefaultMaxItems,
		"server.addr":                  DefaultServerAddr,
	}
}

// ApplyDefaults fills unset values and resolves relative paths against Root.
func (c *ProjectConfig) ApplyDefaults() {
	if c.Completion.MaxItems == 0 {
		c.Completion.MaxItems = DefaultMaxItems
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Catalog.Fold == "" {
		c.Catalog.Fold = DefaultFold
	}
	c.Catalog.File = ResolvePath(c.Catalog.File, c.Root)
	c.Catalog.Cache = ResolvePath(c.Catalog.Cache, c.Root)
	if c.Target != nil {
		c.Target.ApplyDefaults()
		if c.Target.Type == "duckdb" && c.Target.Database != ":memory:" {
			c.Target.Database = ResolvePath(c.Target.Database, c.Root)
		}
	}
}

// ApplyDefaults applies default values based on the target type and expands
// ${VAR} references in connection fields.
func (t *TargetConfig) ApplyDefaults() {
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
	t.Password = ExpandEnvVars(t.Password)
	t.User = ExpandEnvVars(t.User)
	t.Host = ExpandEnvVars(t.Host)
	t.Database = ExpandEnvVars(t.Database)
}

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	switch dbType {
	case "postgres":
		return "public"
	case "duckdb":
		return "main"
	}
	return ""
}

// ResolvePath resolves path relative to baseDir unless it is empty,
// absolute, or baseDir is empty.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}
