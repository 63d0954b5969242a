// Package completion turns a caret position in SQL text into completion
// items. It combines the scope engine, which knows what each position may
// reference, with a catalog, which knows the columns of physical tables.
package completion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// DefaultMaxItems caps a completion list when Options.MaxItems is zero.
const DefaultMaxItems = 200

// Options configures an Engine.
type Options struct {
	// CorrelationDepth is how many ancestor scopes contribute aliases.
	CorrelationDepth int
	// MaxItems caps the number of items returned.
	MaxItems      int
	DefaultSchema string
	Fold          catalog.Fold
	// Concurrency bounds parallel catalog lookups.
	Concurrency int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{CorrelationDepth: 1, MaxItems: DefaultMaxItems}
}

// Engine answers completion and inspection requests. It is safe for
// concurrent use; the catalog can be swapped while requests are served.
type Engine struct {
	mu     sync.RWMutex
	cat    catalog.Catalog
	opts   Options
	logger *slog.Logger
}

// New creates an engine. cat may be nil, in which case base tables complete
// no columns.
func New(cat catalog.Catalog, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.CorrelationDepth < 0 {
		opts.CorrelationDepth = 0
	}
	return &Engine{cat: cat, opts: opts, logger: logger}
}

// SetCatalog replaces the catalog used by subsequent requests.
func (e *Engine) SetCatalog(cat catalog.Catalog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cat = cat
}

// Catalog returns the current catalog.
func (e *Engine) Catalog() catalog.Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cat
}

// Options returns the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Inspection is everything known about a caret position.
type Inspection struct {
	Offset int           `json:"offset"`
	Scopes []scope.Scope `json:"scopes"`
	Scope  scope.Scope   `json:"scope"`
	// Path lists scope indexes from the root to Scope.
	Path []int `json:"path"`
	// Visibility has its TableColumns resolved through the catalog.
	Visibility scope.VisibilitySet `json:"visibility"`
	// ParentTableColumns holds the resolved columns of base tables
	// reachable through ParentAliases.
	ParentTableColumns []scope.TableColumns `json:"parent_table_columns"`
}

// Inspect parses text and resolves what is visible at offset. Catalog
// failures are returned alongside a usable Inspection; unknown tables are
// not failures.
func (e *Engine) Inspect(ctx context.Context, text string, offset int) (Inspection, error) {
	offset = clamp(offset, len(text))
	scopes := scope.Parse(text)
	sc := scope.ScopeAtCaret(scopes, offset)

	vis := scope.VisibleItemsDepth(scopes, sc, e.opts.CorrelationDepth)

	// Own and parent base tables go through the catalog in one batch.
	batch := vis
	own := len(vis.TableColumns)
	for _, a := range vis.ParentAliases {
		if tc, ok := catalog.TableFor(a.Table); ok {
			tc.Alias = a.Name
			batch.TableColumns = append(batch.TableColumns, tc)
		}
	}

	resolved, err := catalog.Resolve(ctx, e.Catalog(), batch, catalog.ResolveOptions{
		DefaultSchema: e.opts.DefaultSchema,
		Fold:          e.opts.Fold,
		Concurrency:   e.opts.Concurrency,
	})
	if err != nil {
		e.logger.Warn("catalog lookup failed", slog.Any("error", err))
	}

	in := Inspection{
		Offset:             offset,
		Scopes:             scopes,
		Scope:              sc,
		Path:               scope.Path(scopes, sc.Index),
		Visibility:         resolved,
		ParentTableColumns: []scope.TableColumns{},
	}
	in.Visibility.TableColumns = resolved.TableColumns[:own:own]
	in.ParentTableColumns = append(in.ParentTableColumns, resolved.TableColumns[own:]...)
	return in, err
}

// ColumnsOf returns the columns behind a visible name, looking at the scope
// itself first and then at its ancestors.
func (in Inspection) ColumnsOf(name string) ([]string, bool) {
	a, ok := in.Visibility.Lookup(name)
	if !ok {
		return nil, false
	}
	if !a.IsFromParentScope {
		for _, d := range in.Visibility.DerivedTableColumns {
			if d.Alias != "" && equalFold(d.Alias, name) {
				return d.Columns, true
			}
		}
		for _, tc := range in.Visibility.TableColumns {
			if equalFold(tc.Alias, name) {
				return tc.Columns, true
			}
		}
		return nil, true
	}

	switch {
	case a.Table.IsDerivedTable:
		return exposed(in.Scopes, a.Table.DerivedScope), true
	case a.Table.CTEScope >= 0:
		return exposed(in.Scopes, a.Table.CTEScope), true
	}
	for _, tc := range in.ParentTableColumns {
		if equalFold(tc.Alias, name) {
			return tc.Columns, true
		}
	}
	return nil, true
}

func exposed(scopes []scope.Scope, idx int) []string {
	if idx < 0 || idx >= len(scopes) {
		return nil
	}
	return scopes[idx].ExposedColumns
}

func clamp(offset, n int) int {
	if offset < 0 {
		return 0
	}
	if offset > n {
		return n
	}
	return offset
}
