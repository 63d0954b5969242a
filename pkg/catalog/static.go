package catalog

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a static catalog:
//
//	default_schema: sales
//	schemas:
//	  sales:
//	    orders: [id, customer_id, amount]
//	    customers: [id, name]
type File struct {
	DefaultSchema string                         `yaml:"default_schema"`
	Schemas       map[string]map[string][]string `yaml:"schemas"`
}

// Static is an in-memory catalog. Lookups ignore case. It is safe for
// concurrent use and can be reloaded in place.
type Static struct {
	mu            sync.RWMutex
	defaultSchema string
	columns       map[string][]string
	tables        []TableName
}

// NewStatic creates a catalog from a File value.
func NewStatic(f File) *Static {
	s := &Static{}
	s.set(f)
	return s
}

// LoadStatic reads a static catalog from a YAML file.
func LoadStatic(path string) (*Static, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(f), nil
}

// Reload replaces the catalog contents with the file at path. On error the
// current contents are kept.
func (s *Static) Reload(path string) error {
	f, err := readFile(path)
	if err != nil {
		return err
	}
	s.set(f)
	return nil
}

func readFile(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return File{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return f, nil
}

func (s *Static) set(f File) {
	columns := make(map[string][]string)
	var tables []TableName
	for schema, ts := range f.Schemas {
		for table, cols := range ts {
			columns[key(schema, table)] = slices.Clone(cols)
			tables = append(tables, TableName{Schema: schema, Name: table})
		}
	}
	slices.SortFunc(tables, func(a, b TableName) int {
		return strings.Compare(a.String(), b.String())
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultSchema = f.DefaultSchema
	s.columns = columns
	s.tables = tables
}

// DefaultSchema returns the schema used for unqualified lookups.
func (s *Static) DefaultSchema() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultSchema
}

// Columns implements Catalog.
func (s *Static) Columns(_ context.Context, schema, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if schema == "" {
		schema = s.defaultSchema
	}
	cols, ok := s.columns[key(schema, table)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", TableName{Schema: schema, Name: table}, ErrTableNotFound)
	}
	return slices.Clone(cols), nil
}

// Tables implements Lister.
func (s *Static) Tables(_ context.Context, schema string) ([]TableName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TableName
	for _, t := range s.tables {
		if schema == "" || strings.EqualFold(t.Schema, schema) {
			out = append(out, t)
		}
	}
	return out, nil
}

var (
	_ Catalog = (*Static)(nil)
	_ Lister  = (*Static)(nil)
)
