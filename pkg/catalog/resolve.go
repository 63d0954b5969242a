package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/leapstack-labs/sqlscope/pkg/scope"
	"golang.org/x/sync/errgroup"
)

// ResolveOptions tunes Resolve.
type ResolveOptions struct {
	// DefaultSchema is used for tables referenced without a schema.
	DefaultSchema string
	// Fold is applied to unquoted schema and table names before lookup.
	Fold Fold
	// Concurrency bounds parallel lookups. Zero means 4.
	Concurrency int
}

// Resolve fills the Columns of every TableColumns entry of vis. Each
// distinct table is looked up once, concurrently. Unknown tables keep an
// empty column list; other lookup failures are joined into the returned
// error, which never prevents the rest from resolving.
func Resolve(ctx context.Context, cat Catalog, vis scope.VisibilitySet, opts ResolveOptions) (scope.VisibilitySet, error) {
	out := vis
	out.TableColumns = slices.Clone(vis.TableColumns)
	if cat == nil || len(out.TableColumns) == 0 {
		return out, nil
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	type lookup struct {
		schema, table string
		columns       []string
	}
	lookups := map[string]*lookup{}
	for _, tc := range out.TableColumns {
		schema, table := lookupName(tc, opts)
		k := schema + "\x00" + table
		if _, ok := lookups[k]; !ok {
			lookups[k] = &lookup{schema: schema, table: table}
		}
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(limit)
	for _, l := range lookups {
		g.Go(func() error {
			cols, err := cat.Columns(ctx, l.schema, l.table)
			if err != nil {
				if !IsNotFound(err) {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			}
			l.columns = cols
			return nil
		})
	}
	_ = g.Wait()

	for i, tc := range out.TableColumns {
		schema, table := lookupName(tc, opts)
		out.TableColumns[i].Columns = slices.Clone(lookups[schema+"\x00"+table].columns)
	}
	return out, errors.Join(errs...)
}

// TableFor returns the TableColumns placeholder for a single base table
// reference, or false when ref is not a base table.
func TableFor(ref scope.TableRef) (scope.TableColumns, bool) {
	if !ref.IsBaseTable() {
		return scope.TableColumns{}, false
	}
	return scope.TableColumns{
		Alias:        ref.VisibleName(),
		Catalog:      ref.Catalog,
		Schema:       ref.Schema,
		Table:        ref.TableName,
		Quoted:       ref.Quoted,
		SchemaQuoted: ref.SchemaQuoted,
	}, true
}

func lookupName(tc scope.TableColumns, opts ResolveOptions) (string, string) {
	schema, table := opts.DefaultSchema, tc.Table
	if tc.Schema != "" {
		schema = tc.Schema
		if !tc.SchemaQuoted {
			schema = opts.Fold.Apply(schema)
		}
	} else {
		schema = opts.Fold.Apply(schema)
	}
	if !tc.Quoted {
		table = opts.Fold.Apply(table)
	}
	return schema, table
}
