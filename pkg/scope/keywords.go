package scope

import (
	"slices"
	"strings"
)

// reserved holds the words never accepted as an alias or bare table name.
var reserved = map[string]struct{}{}

func init() {
	for _, kw := range []string{
		"SELECT", "FROM", "WHERE", "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "OUTER",
		"NATURAL", "LATERAL", "APPLY", "ON", "USING", "AND", "OR", "ORDER", "BY", "GROUP", "HAVING",
		"INSERT", "INTO", "UPDATE", "SET", "DELETE", "MERGE", "CREATE", "ALTER", "DROP", "TABLE",
		"VIEW", "INDEX", "AS", "DISTINCT", "ALL", "VALUES", "UNION", "EXCEPT", "INTERSECT", "MINUS",
		"FETCH", "FIRST", "NEXT", "ROWS", "ROW", "ONLY", "FOR", "NULL", "NOT", "IN", "EXISTS",
		"BETWEEN", "LIKE", "ILIKE", "IS", "CASE", "WHEN", "THEN", "ELSE", "END", "ASC", "DESC",
		"LIMIT", "OFFSET", "WITH", "RECURSIVE", "WINDOW", "QUALIFY", "RETURNING", "MATCHED",
		"CONNECT", "START", "PARTITION", "OVER", "ANY", "SOME",
	} {
		reserved[kw] = struct{}{}
	}
}

// IsReserved reports whether word is a reserved SQL keyword. The check is
// case-insensitive.
func IsReserved(word string) bool {
	_, ok := reserved[strings.ToUpper(word)]
	return ok
}

// Keywords returns the reserved keywords in upper case, sorted.
func Keywords() []string {
	out := make([]string, 0, len(reserved))
	for kw := range reserved {
		out = append(out, kw)
	}
	slices.Sort(out)
	return out
}

var (
	subqueryStarters = []string{"SELECT", "VALUES"}

	setOperators = []string{"UNION ALL", "UNION", "INTERSECT", "EXCEPT", "MINUS"}

	// fromTerminators end a FROM clause.
	fromTerminators = []string{
		"WHERE", "GROUP BY", "ORDER BY", "HAVING", "FETCH", "LIMIT", "OFFSET", "FOR",
		"WITH", "WINDOW", "QUALIFY", "RETURNING", "CONNECT BY", "START WITH",
	}

	// selectTerminators end a SELECT list.
	selectTerminators = []string{
		"FROM", "INTO", "WHERE", "GROUP BY", "ORDER BY", "HAVING", "FETCH", "LIMIT",
		"OFFSET", "WINDOW", "QUALIFY",
	}

	// whereTerminators end a WHERE clause.
	whereTerminators = []string{
		"GROUP BY", "ORDER BY", "HAVING", "FETCH", "LIMIT", "OFFSET", "FOR",
		"WINDOW", "QUALIFY", "RETURNING", "WITH",
	}

	// joinModifiers may precede a join word, as in LEFT OUTER JOIN.
	joinModifiers = map[string]struct{}{
		"INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "OUTER": {}, "CROSS": {}, "NATURAL": {},
	}

	// joinWords end a join operator and separate FROM items. ON and USING
	// start a join condition.
	joinWords = map[string]struct{}{
		"JOIN": {}, "APPLY": {}, "STRAIGHT_JOIN": {},
	}
)

// joinStart reports whether toks[i] begins a join operator: a join word,
// optionally preceded by modifiers. A modifier followed by anything else is
// an expression, as in LEFT(code, 2).
func joinStart(toks []token, i int) bool {
	for ; i < len(toks); i++ {
		if toks[i].kind != tokIdent {
			return false
		}
		w := strings.ToUpper(toks[i].text)
		if _, ok := joinWords[w]; ok {
			return true
		}
		if _, ok := joinModifiers[w]; !ok {
			return false
		}
	}
	return false
}
