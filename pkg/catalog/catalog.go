// Package catalog supplies physical column lists for the base tables a
// scope references. The scope engine never touches a database; a Catalog
// turns its TableColumns placeholders into column names.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrTableNotFound is returned when a catalog does not know a table.
var ErrTableNotFound = errors.New("table not found")

// TableName identifies a table within a catalog.
type TableName struct {
	Schema string `json:"schema" yaml:"schema"`
	Name   string `json:"name" yaml:"name"`
}

// String returns schema.name, or name when the schema is empty.
func (t TableName) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ParseTableName splits "schema.table". A name without a dot has an empty
// schema. Only the last dot separates, so "db.s.t" yields schema "db.s".
func ParseTableName(s string) TableName {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return TableName{Schema: s[:i], Name: s[i+1:]}
	}
	return TableName{Name: s}
}

// Catalog looks up the ordered column names of a table. An empty schema
// means the catalog's default schema. Unknown tables yield an error
// wrapping ErrTableNotFound.
type Catalog interface {
	Columns(ctx context.Context, schema, table string) ([]string, error)
}

// Lister is implemented by catalogs that can enumerate their tables. An
// empty schema lists every schema.
type Lister interface {
	Tables(ctx context.Context, schema string) ([]TableName, error)
}

// Store is a writable catalog, used as a cache in front of a slower one.
type Store interface {
	Catalog
	PutColumns(ctx context.Context, source string, table TableName, columns []string) error
}

// IsNotFound reports whether err means the table is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}

// ListTables lists tables when cat implements Lister, and returns nil
// otherwise.
func ListTables(ctx context.Context, cat Catalog, schema string) ([]TableName, error) {
	l, ok := cat.(Lister)
	if !ok {
		return nil, nil
	}
	return l.Tables(ctx, schema)
}
