package completion

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// ItemKind classifies a completion item.
type ItemKind string

// Item kinds.
const (
	KindAlias   ItemKind = "alias"
	KindColumn  ItemKind = "column"
	KindTable   ItemKind = "table"
	KindCTE     ItemKind = "cte"
	KindKeyword ItemKind = "keyword"
)

// Item is one completion candidate.
type Item struct {
	Label  string   `json:"label"`
	Kind   ItemKind `json:"kind"`
	Detail string   `json:"detail,omitempty"`
	// FromParent marks aliases reached through correlation.
	FromParent bool `json:"from_parent,omitempty"`

	rank int
}

// Result is the answer to a completion request.
type Result struct {
	Context   ContextType `json:"context"`
	Prefix    string      `json:"prefix"`
	Qualifier string      `json:"qualifier,omitempty"`
	// ReplaceStart is the offset where inserting an item starts.
	ReplaceStart int    `json:"replace_start"`
	Scope        int    `json:"scope"`
	Items        []Item `json:"items"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// sqlKeywords are offered, in this order, wherever a keyword may follow.
var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "JOIN", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN",
	"FULL JOIN", "CROSS JOIN", "ON", "USING", "GROUP BY", "ORDER BY", "HAVING",
	"LIMIT", "OFFSET", "FETCH FIRST", "AS", "AND", "OR", "NOT", "IN", "EXISTS",
	"BETWEEN", "LIKE", "IS NULL", "IS NOT NULL", "DISTINCT", "CASE", "WHEN",
	"THEN", "ELSE", "END", "WITH", "UNION", "UNION ALL", "EXCEPT", "INTERSECT",
	"INSERT INTO", "UPDATE", "SET", "DELETE FROM", "MERGE INTO", "VALUES",
	"LATERAL", "ASC", "DESC", "OVER", "PARTITION BY", "QUALIFY",
}

const (
	rankOwnAlias = iota
	rankColumn
	rankParentAlias
	rankTable
	rankKeyword
)

// Complete returns the completion items for a caret at offset. It never
// fails: catalog problems are logged and only reduce the items offered.
func (e *Engine) Complete(ctx context.Context, text string, offset int) Result {
	in, _ := e.Inspect(ctx, text, offset)
	cc := detectContext(text, in.Scope, in.Offset)

	res := Result{
		Context:      cc.Type,
		Prefix:       cc.Prefix,
		Qualifier:    cc.Qualifier,
		ReplaceStart: cc.PrefixStart,
		Scope:        in.Scope.Index,
		Items:        []Item{},
	}

	var items []Item
	switch cc.Type {
	case ContextColumnAccess:
		items = e.qualifiedItems(ctx, in, cc.Qualifier)
	case ContextFromClause:
		items = e.tableItems(ctx, in, cc.Qualifier)
		if cc.Qualifier == "" {
			items = append(items, keywordItems(cc.Prefix)...)
		}
	case ContextSelectClause, ContextWhereClause:
		items = columnItems(in)
		items = append(items, keywordItems(cc.Prefix)...)
	default:
		items = keywordItems(cc.Prefix)
	}

	items = filter(items, cc.Prefix)
	slices.SortStableFunc(items, func(a, b Item) int { return cmp.Compare(a.rank, b.rank) })

	if len(items) > e.opts.MaxItems {
		items = items[:e.opts.MaxItems]
		res.Truncated = true
	}
	res.Items = append(res.Items, items...)

	e.logger.Debug("completion",
		slog.Int("offset", in.Offset),
		slog.String("context", cc.Type.String()),
		slog.String("prefix", cc.Prefix),
		slog.Int("items", len(res.Items)))
	return res
}

// qualifiedItems completes "name." with the columns behind name, or with
// the tables of schema name when no alias matches.
func (e *Engine) qualifiedItems(ctx context.Context, in Inspection, qualifier string) []Item {
	if cols, ok := in.ColumnsOf(qualifier); ok {
		items := make([]Item, 0, len(cols))
		for _, c := range cols {
			items = append(items, Item{Label: c, Kind: KindColumn, Detail: qualifier, rank: rankColumn})
		}
		return items
	}
	return e.schemaTables(ctx, qualifier)
}

// columnItems lists the aliases visible in the scope and the unqualified
// columns of its own FROM items.
func columnItems(in Inspection) []Item {
	var items []Item
	for _, a := range in.Visibility.Aliases {
		items = append(items, Item{Label: a.Name, Kind: KindAlias, Detail: describeRef(a.Table), rank: rankOwnAlias})
	}
	for _, a := range in.Visibility.ParentAliases {
		items = append(items, Item{Label: a.Name, Kind: KindAlias, Detail: describeRef(a.Table), FromParent: true, rank: rankParentAlias})
	}
	for _, d := range in.Visibility.DerivedTableColumns {
		for _, c := range d.Columns {
			items = append(items, Item{Label: c, Kind: KindColumn, Detail: d.Alias, rank: rankColumn})
		}
	}
	for _, tc := range in.Visibility.TableColumns {
		for _, c := range tc.Columns {
			items = append(items, Item{Label: c, Kind: KindColumn, Detail: tc.Alias, rank: rankColumn})
		}
	}
	return items
}

// tableItems lists CTEs in reach of the scope and catalog tables. With a
// qualifier only the tables of that schema are listed.
func (e *Engine) tableItems(ctx context.Context, in Inspection, qualifier string) []Item {
	if qualifier != "" {
		return e.schemaTables(ctx, qualifier)
	}

	var items []Item
	onPath := map[int]bool{}
	for _, idx := range in.Path {
		onPath[idx] = true
	}
	for _, sc := range in.Scopes {
		if sc.CTEName != "" && onPath[sc.Parent] && sc.Index != in.Scope.Index {
			items = append(items, Item{Label: sc.CTEName, Kind: KindCTE, Detail: strings.Join(sc.ExposedColumns, ", "), rank: rankTable})
		}
	}

	tables, err := catalog.ListTables(ctx, e.Catalog(), "")
	if err != nil {
		e.logger.Warn("failed to list tables", slog.Any("error", err))
	}
	for _, t := range tables {
		label := t.Name
		if t.Schema != "" && !equalFold(t.Schema, e.opts.DefaultSchema) {
			label = t.String()
		}
		items = append(items, Item{Label: label, Kind: KindTable, Detail: t.String(), rank: rankTable})
	}
	return items
}

func (e *Engine) schemaTables(ctx context.Context, schema string) []Item {
	tables, err := catalog.ListTables(ctx, e.Catalog(), schema)
	if err != nil {
		e.logger.Warn("failed to list tables", slog.String("schema", schema), slog.Any("error", err))
		return nil
	}
	items := make([]Item, 0, len(tables))
	for _, t := range tables {
		items = append(items, Item{Label: t.Name, Kind: KindTable, Detail: t.String(), rank: rankTable})
	}
	return items
}

// keywordItems returns the keywords, lower-cased when the prefix is typed in
// lower case.
func keywordItems(prefix string) []Item {
	lower := prefix != "" && prefix == strings.ToLower(prefix)
	items := make([]Item, 0, len(sqlKeywords))
	for _, kw := range sqlKeywords {
		if lower {
			kw = strings.ToLower(kw)
		}
		items = append(items, Item{Label: kw, Kind: KindKeyword, rank: rankKeyword})
	}
	return items
}

// filter keeps the items whose label starts with prefix, ignoring case, and
// drops repeated labels of the same kind.
func filter(items []Item, prefix string) []Item {
	seen := map[string]struct{}{}
	out := items[:0]
	for _, it := range items {
		if !hasPrefixFold(it.Label, prefix) {
			continue
		}
		k := string(it.Kind) + "\x00" + strings.ToUpper(it.Label)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func describeRef(t scope.TableRef) string {
	switch {
	case t.IsDerivedTable:
		return "derived table"
	case t.CTEScope >= 0:
		return "cte " + t.TableName
	case t.IsFunction:
		return "function " + t.FullName()
	}
	return t.FullName()
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
