// Package scope resolves which table aliases and columns are visible at a
// position in SQL text.
//
// Parse carves the text into a flat list of scopes, one for the statement
// and one per parenthesized SELECT or VALUES subquery, linked by parent
// index. It works on incomplete and malformed SQL as typed in an editor and
// never panics. A set operation such as UNION stays in a single scope whose
// tables are the union of its arms' tables.
//
//	scopes := scope.Parse(sql)
//	at := scope.ScopeAtCaret(scopes, caret)
//	vis := scope.VisibleItems(scopes, at)
//
// Physical columns of base tables are not known here; VisibilitySet lists
// them as TableColumns placeholders for a catalog to fill in.
package scope
