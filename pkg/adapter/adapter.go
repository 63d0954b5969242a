// Package adapter connects sqlscope to live databases so their
// information_schema can serve as a column catalog.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves in init(). Import them with a blank identifier.
package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

// Config holds connection settings for a database target.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column is one column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a table.
type Metadata struct {
	Schema  string
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in ordinal order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Adapter is a database that can describe its tables.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// GetTableMetadata retrieves metadata for "table" or "schema.table".
	// Unknown tables yield an error wrapping catalog.ErrTableNotFound.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// ListTables lists base tables and views. An empty schema lists all
	// user schemas.
	ListTables(ctx context.Context, schema string) ([]catalog.TableName, error)

	// DefaultSchema is the schema unqualified names resolve against.
	DefaultSchema() string
}
