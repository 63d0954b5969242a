package scope

import "strings"

// NoParent is the Parent index of a root scope.
const NoParent = -1

// Span is a half-open byte range [Start, End) in the parsed text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether offset lies in [Start, End).
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// ContainsCaret reports whether an editor caret at offset sits inside the
// span: after the opening character and up to, including, End.
func (s Span) ContainsCaret(offset int) bool {
	return s.Start < offset && offset <= s.End
}

// Len returns the span length.
func (s Span) Len() int {
	return s.End - s.Start
}

// Scope is one query block: the top-level statement or a parenthesized
// SELECT/VALUES subquery. Scopes reference each other by index into the
// slice returned by Parse.
type Scope struct {
	Index          int        `json:"index"`
	Level          int        `json:"level"`
	Alias          string     `json:"alias,omitempty"`
	Parent         int        `json:"parent"`
	Tables         []TableRef `json:"tables"`
	ExposedColumns []string   `json:"exposed_columns"`
	WherePart      string     `json:"where,omitempty"`
	Span           Span       `json:"span"`

	// Unterminated is set when the closing parenthesis was never found.
	Unterminated bool `json:"unterminated,omitempty"`
	// CTEName is set when the scope is the body of WITH name AS (...).
	CTEName string `json:"cte,omitempty"`
	// ColumnAliases holds the list from alias(c1, c2) or name(c1, c2) AS.
	ColumnAliases []string `json:"column_aliases,omitempty"`
}

// HasParent reports whether the scope is nested in another scope.
func (s Scope) HasParent() bool {
	return s.Parent != NoParent
}

// IsDerived reports whether the scope is a subquery.
func (s Scope) IsDerived() bool {
	return s.Level > 0
}

// TableRef is one FROM/JOIN item of a scope.
type TableRef struct {
	Catalog        string `json:"catalog,omitempty"`
	Schema         string `json:"schema,omitempty"`
	TableName      string `json:"table,omitempty"`
	Alias          string `json:"alias,omitempty"`
	IsDerivedTable bool   `json:"derived,omitempty"`
	// DerivedScope is the child scope index of a derived table, or -1.
	DerivedScope int `json:"derived_scope"`
	// CTEScope is the scope index of the CTE body the name refers to, or -1.
	CTEScope   int  `json:"cte_scope"`
	IsFunction bool `json:"function,omitempty"`
	// Quoted and SchemaQuoted mark delimited names, which keep their case.
	Quoted       bool `json:"quoted,omitempty"`
	SchemaQuoted bool `json:"schema_quoted,omitempty"`
	Span         Span `json:"span"`
}

// VisibleName returns the name a query uses to refer to the item: the alias
// when set, otherwise the bare table name. Derived tables without an alias
// have no visible name.
func (t TableRef) VisibleName() string {
	if t.Alias != "" {
		return t.Alias
	}
	if t.IsDerivedTable {
		return ""
	}
	return t.TableName
}

// FullName returns the dotted catalog.schema.table name.
func (t TableRef) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Catalog, t.Schema, t.TableName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// IsBaseTable reports whether the item names a physical table whose columns
// only a catalog can supply.
func (t TableRef) IsBaseTable() bool {
	return !t.IsDerivedTable && !t.IsFunction && t.CTEScope < 0 && t.TableName != ""
}

func newTableRef() TableRef {
	return TableRef{DerivedScope: -1, CTEScope: -1}
}

// VisibleAlias is an alias usable at a position.
type VisibleAlias struct {
	Name              string   `json:"name"`
	Table             TableRef `json:"table"`
	Scope             int      `json:"scope"`
	IsFromParentScope bool     `json:"from_parent,omitempty"`
}

// DerivedColumns pairs a derived table (or CTE reference) with the columns
// its scope exposes.
type DerivedColumns struct {
	Alias   string   `json:"alias"`
	Scope   int      `json:"scope"`
	Columns []string `json:"columns"`
	IsCTE   bool     `json:"cte,omitempty"`
}

// TableColumns associates a visible name with a physical table. Columns is
// empty until a catalog resolves it.
type TableColumns struct {
	Alias   string   `json:"alias"`
	Catalog string   `json:"catalog,omitempty"`
	Schema  string   `json:"schema,omitempty"`
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"`
	// Quoted and SchemaQuoted are copied from the TableRef.
	Quoted       bool `json:"quoted,omitempty"`
	SchemaQuoted bool `json:"schema_quoted,omitempty"`
}

// VisibilitySet is everything a position inside a scope may reference.
type VisibilitySet struct {
	Aliases             []VisibleAlias   `json:"aliases"`
	ParentAliases       []VisibleAlias   `json:"parent_aliases"`
	DerivedTableColumns []DerivedColumns `json:"derived_columns"`
	TableColumns        []TableColumns   `json:"table_columns"`
}

// Lookup finds the alias name, preferring the target scope over ancestors.
// Names compare case-insensitively.
func (v VisibilitySet) Lookup(name string) (VisibleAlias, bool) {
	for _, list := range [][]VisibleAlias{v.Aliases, v.ParentAliases} {
		for _, a := range list {
			if strings.EqualFold(a.Name, name) {
				return a, true
			}
		}
	}
	return VisibleAlias{}, false
}

// ColumnsOf returns the known columns behind a visible name: derived or CTE
// columns, or catalog-resolved table columns.
func (v VisibilitySet) ColumnsOf(name string) []string {
	for _, d := range v.DerivedTableColumns {
		if d.Alias != "" && strings.EqualFold(d.Alias, name) {
			return d.Columns
		}
	}
	for _, t := range v.TableColumns {
		if strings.EqualFold(t.Alias, name) {
			return t.Columns
		}
	}
	return nil
}
