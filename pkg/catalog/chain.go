package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Chain asks each catalog in order; the first that knows the table wins.
type Chain []Catalog

// Columns implements Catalog. Errors other than ErrTableNotFound do not stop
// the chain but are reported when no catalog answers.
func (c Chain) Columns(ctx context.Context, schema, table string) ([]string, error) {
	var errs []error
	for _, cat := range c {
		cols, err := cat.Columns(ctx, schema, table)
		if err == nil {
			return cols, nil
		}
		if !IsNotFound(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%s: %w", TableName{Schema: schema, Name: table}, ErrTableNotFound)
}

// Tables implements Lister by merging every member that lists tables.
func (c Chain) Tables(ctx context.Context, schema string) ([]TableName, error) {
	seen := map[string]struct{}{}
	var out []TableName
	for _, cat := range c {
		tables, err := ListTables(ctx, cat, schema)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			k := key(t.Schema, t.Name)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b TableName) int {
		return strings.Compare(a.String(), b.String())
	})
	return out, nil
}

// Cached is a read-through cache: lookups hit Store first and fall back to
// Source, writing what Source returns back into Store.
type Cached struct {
	Store  Store
	Source Catalog
	// Name identifies Source in the store.
	Name   string
	Logger *slog.Logger
}

// Columns implements Catalog.
func (c *Cached) Columns(ctx context.Context, schema, table string) ([]string, error) {
	cols, err := c.Store.Columns(ctx, schema, table)
	if err == nil {
		return cols, nil
	}
	if !IsNotFound(err) {
		c.logger().Warn("catalog cache lookup failed", "table", table, "error", err)
	}

	cols, err = c.Source.Columns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if err := c.Store.PutColumns(ctx, c.Name, TableName{Schema: schema, Name: table}, cols); err != nil {
		c.logger().Warn("failed to cache columns", "table", table, "error", err)
	}
	return cols, nil
}

// Tables implements Lister from the store, then the source.
func (c *Cached) Tables(ctx context.Context, schema string) ([]TableName, error) {
	return Chain{c.Store, c.Source}.Tables(ctx, schema)
}

func (c *Cached) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

var (
	_ Lister = Chain(nil)
	_ Lister = (*Cached)(nil)
)
