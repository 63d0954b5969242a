package completion_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *catalog.Static {
	return catalog.NewStatic(catalog.File{
		DefaultSchema: "sales",
		Schemas: map[string]map[string][]string{
			"sales": {
				"orders":    {"id", "customer_id", "amount"},
				"customers": {"id", "name"},
			},
			"hr": {
				"staff": {"id", "name", "manager_id"},
			},
		},
	})
}

func newEngine(t *testing.T, opts completion.Options) *completion.Engine {
	t.Helper()
	if opts.DefaultSchema == "" {
		opts.DefaultSchema = "sales"
	}
	return completion.New(testCatalog(), opts, testutil.NewTestLogger(t))
}

func complete(t *testing.T, e *completion.Engine, marked string) completion.Result {
	t.Helper()
	i := strings.IndexByte(marked, '|')
	require.GreaterOrEqual(t, i, 0, "missing caret marker")
	return e.Complete(context.Background(), marked[:i]+marked[i+1:], i)
}

func labels(items []completion.Item) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func ofKind(items []completion.Item, kind completion.ItemKind) []string {
	out := []string{}
	for _, it := range items {
		if it.Kind == kind {
			out = append(out, it.Label)
		}
	}
	return out
}

// ---------- Complete ----------

func TestComplete(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		context completion.ContextType
		want    []string
	}{
		{
			name:    "qualified base table",
			sql:     "SELECT o.| FROM orders o",
			context: completion.ContextColumnAccess,
			want:    []string{"id", "customer_id", "amount"},
		},
		{
			name:    "qualified with prefix",
			sql:     "SELECT o.c| FROM orders o",
			context: completion.ContextColumnAccess,
			want:    []string{"customer_id"},
		},
		{
			name:    "qualified case insensitive",
			sql:     "SELECT O.AM| FROM orders o",
			context: completion.ContextColumnAccess,
			want:    []string{"amount"},
		},
		{
			name:    "correlated parent alias",
			sql:     "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM customers c WHERE c.id = o.|)",
			context: completion.ContextColumnAccess,
			want:    []string{"id", "customer_id", "amount"},
		},
		{
			name:    "derived table columns",
			sql:     "SELECT s.| FROM (SELECT id, name AS label FROM t) s",
			context: completion.ContextColumnAccess,
			want:    []string{"id", "label"},
		},
		{
			name:    "cte columns",
			sql:     "WITH r (k, v) AS (SELECT 1, 2) SELECT r.| FROM r",
			context: completion.ContextColumnAccess,
			want:    []string{"k", "v"},
		},
		{
			name:    "schema tables in from",
			sql:     "SELECT * FROM hr.|",
			context: completion.ContextFromClause,
			want:    []string{"staff"},
		},
		{
			name:    "table prefix in from",
			sql:     "SELECT * FROM cu|",
			context: completion.ContextFromClause,
			want:    []string{"customers"},
		},
		{
			name:    "lower case keyword",
			sql:     "sel|",
			context: completion.ContextUnknown,
			want:    []string{"select"},
		},
		{
			name:    "unknown qualifier",
			sql:     "SELECT zz.| FROM orders o",
			context: completion.ContextColumnAccess,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := complete(t, newEngine(t, completion.DefaultOptions()), tt.sql)
			assert.Equal(t, tt.context, res.Context)
			assert.Equal(t, tt.want, labels(res.Items))
		})
	}
}

func TestCompleteSelectList(t *testing.T) {
	e := newEngine(t, completion.Options{})
	res := complete(t, e, "SELECT | FROM orders o JOIN customers c ON c.id = o.customer_id")

	assert.Equal(t, completion.ContextSelectClause, res.Context)
	require.Greater(t, len(res.Items), 6)
	assert.Equal(t, []string{"o", "c", "id", "customer_id", "amount", "name"}, labels(res.Items[:6]))
	assert.Equal(t, completion.KindAlias, res.Items[0].Kind)
	assert.Equal(t, "orders", res.Items[0].Detail)
	assert.Equal(t, completion.KindKeyword, res.Items[6].Kind)
}

func TestCompleteParentAliasesFlagged(t *testing.T) {
	e := newEngine(t, completion.Options{CorrelationDepth: 1})
	res := complete(t, e, "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM customers c WHERE |)")

	assert.Equal(t, completion.ContextWhereClause, res.Context)
	var own, parent []string
	for _, it := range res.Items {
		if it.Kind != completion.KindAlias {
			continue
		}
		if it.FromParent {
			parent = append(parent, it.Label)
		} else {
			own = append(own, it.Label)
		}
	}
	assert.Equal(t, []string{"c"}, own)
	assert.Equal(t, []string{"o"}, parent)
	assert.Equal(t, 1, res.Scope)
}

func TestCompleteNoCorrelation(t *testing.T) {
	e := newEngine(t, completion.Options{CorrelationDepth: 0})
	res := complete(t, e, "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM customers c WHERE |)")
	assert.Equal(t, []string{"c"}, ofKind(res.Items, completion.KindAlias))

	res = complete(t, e, "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM customers c WHERE o.|)")
	assert.Empty(t, res.Items)
}

func TestCompleteSiblingsIsolated(t *testing.T) {
	e := newEngine(t, completion.Options{CorrelationDepth: 3})
	res := complete(t, e, "SELECT * FROM (SELECT a FROM x xx) p JOIN (SELECT b FROM y yy WHERE |) q ON 1 = 1")

	got := ofKind(res.Items, completion.KindAlias)
	assert.Equal(t, []string{"yy"}, got)
}

func TestCompleteFromClause(t *testing.T) {
	e := newEngine(t, completion.Options{})
	res := complete(t, e, "WITH recent AS (SELECT id FROM orders) SELECT * FROM |")

	assert.Equal(t, completion.ContextFromClause, res.Context)
	assert.Equal(t, []string{"recent"}, ofKind(res.Items, completion.KindCTE))
	assert.Equal(t, []string{"hr.staff", "customers", "orders"}, ofKind(res.Items, completion.KindTable))
	assert.Equal(t, completion.KindCTE, res.Items[0].Kind)
}

func TestCompleteAfterTableOffersKeywords(t *testing.T) {
	e := newEngine(t, completion.Options{})
	res := complete(t, e, "SELECT * FROM orders o |")

	assert.Equal(t, completion.ContextUnknown, res.Context)
	require.NotEmpty(t, res.Items)
	for _, it := range res.Items {
		assert.Equal(t, completion.KindKeyword, it.Kind, it.Label)
	}
	assert.Contains(t, labels(res.Items), "WHERE")
}

func TestCompleteMaxItems(t *testing.T) {
	e := newEngine(t, completion.Options{MaxItems: 2})
	res := complete(t, e, "|")

	assert.Len(t, res.Items, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"SELECT", "FROM"}, labels(res.Items))
}

func TestCompleteReplaceRange(t *testing.T) {
	e := newEngine(t, completion.Options{})
	res := complete(t, e, "SELECT o.cust| FROM orders o")

	assert.Equal(t, "cust", res.Prefix)
	assert.Equal(t, "o", res.Qualifier)
	assert.Equal(t, 9, res.ReplaceStart)
}

func TestCompleteWithoutCatalog(t *testing.T) {
	e := completion.New(nil, completion.Options{}, nil)
	res := complete(t, e, "SELECT o.| FROM orders o")
	assert.Empty(t, res.Items)

	res = complete(t, e, "SELECT | FROM orders o")
	assert.Equal(t, []string{"o"}, ofKind(res.Items, completion.KindAlias))
	assert.Empty(t, ofKind(res.Items, completion.KindColumn))
}

type failingCatalog struct{}

func (failingCatalog) Columns(context.Context, string, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestCompleteDegradesOnCatalogError(t *testing.T) {
	e := completion.New(failingCatalog{}, completion.Options{}, testutil.NewTestLogger(t))

	text := "SELECT  FROM orders o"
	res := e.Complete(context.Background(), text, 7)
	assert.Equal(t, []string{"o"}, ofKind(res.Items, completion.KindAlias))

	_, err := e.Inspect(context.Background(), text, 7)
	assert.ErrorContains(t, err, "connection refused")
}

func TestCompleteOffsetClamped(t *testing.T) {
	e := newEngine(t, completion.Options{})
	assert.NotPanics(t, func() {
		e.Complete(context.Background(), "SELECT ", 99)
		e.Complete(context.Background(), "SELECT ", -4)
		e.Complete(context.Background(), "", 0)
	})
}

func TestSetCatalog(t *testing.T) {
	e := completion.New(nil, completion.Options{}, nil)
	assert.Nil(t, e.Catalog())

	e.SetCatalog(testCatalog())
	res := complete(t, e, "SELECT o.| FROM sales.orders o")
	assert.Equal(t, []string{"id", "customer_id", "amount"}, labels(res.Items))
}

// ---------- Inspect ----------

func TestInspect(t *testing.T) {
	e := newEngine(t, completion.DefaultOptions())
	sql := "SELECT * FROM orders o WHERE EXISTS (SELECT 1 FROM customers c WHERE c.id = o.customer_id)"
	off := strings.Index(sql, "c.id")

	in, err := e.Inspect(context.Background(), sql, off)
	require.NoError(t, err)

	assert.Equal(t, 1, in.Scope.Level)
	assert.Equal(t, []int{0, 1}, in.Path)
	assert.Len(t, in.Scopes, 2)

	require.Len(t, in.Visibility.TableColumns, 1)
	assert.Equal(t, "customers", in.Visibility.TableColumns[0].Table)
	assert.Equal(t, []string{"id", "name"}, in.Visibility.TableColumns[0].Columns)

	require.Len(t, in.ParentTableColumns, 1)
	assert.Equal(t, "o", in.ParentTableColumns[0].Alias)
	assert.Equal(t, []string{"id", "customer_id", "amount"}, in.ParentTableColumns[0].Columns)

	cols, ok := in.ColumnsOf("O")
	assert.True(t, ok)
	assert.Equal(t, []string{"id", "customer_id", "amount"}, cols)

	_, ok = in.ColumnsOf("nope")
	assert.False(t, ok)
}

// ---------- Hover ----------

func TestHover(t *testing.T) {
	e := newEngine(t, completion.DefaultOptions())

	tests := []struct {
		name   string
		sql    string
		offset int
		want   string
		ok     bool
	}{
		{"base table alias", "SELECT o.id FROM orders o", 7, "**o**: table `orders`\n\nid, customer_id, amount", true},
		{"derived alias", "SELECT * FROM (SELECT 1 AS n) d", 30, "**d**: derived table\n\nn", true},
		{"outer alias", "SELECT * FROM hr.staff s WHERE EXISTS (SELECT 1 FROM t WHERE t.x = s.id)", 67, "**s**: table `hr.staff` (outer query)\n\nid, name, manager_id", true},
		{"column is not an alias", "SELECT o.id FROM orders o", 10, "", false},
		{"keyword", "SELECT o.id FROM orders o", 14, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Hover(context.Background(), tt.sql, tt.offset)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
