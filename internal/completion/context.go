package completion

import (
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/scope"
)

// ContextType describes what kind of completion context the caret is in.
type ContextType int

// Completion context type constants.
const (
	ContextUnknown ContextType = iota
	ContextSelectClause
	ContextFromClause
	ContextWhereClause
	ContextColumnAccess // After "alias."
)

var contextNames = map[ContextType]string{
	ContextUnknown:      "unknown",
	ContextSelectClause: "select",
	ContextFromClause:   "from",
	ContextWhereClause:  "where",
	ContextColumnAccess: "column_access",
}

func (c ContextType) String() string {
	if name, ok := contextNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (c ContextType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// clauseKeywords are matched at the top level of the caret's scope; the last
// one before the caret decides the context.
var clauseKeywords = []string{
	"SELECT", "FROM", "JOIN", "UPDATE", "INTO", "USING",
	"WHERE", "ON", "HAVING", "GROUP BY", "ORDER BY", "SET", "QUALIFY",
	"LIMIT", "OFFSET", "UNION", "INTERSECT", "EXCEPT", "MINUS", "VALUES",
}

var clauseContexts = map[string]ContextType{
	"SELECT":   ContextSelectClause,
	"FROM":     ContextFromClause,
	"JOIN":     ContextFromClause,
	"UPDATE":   ContextFromClause,
	"INTO":     ContextFromClause,
	"USING":    ContextFromClause,
	"WHERE":    ContextWhereClause,
	"ON":       ContextWhereClause,
	"HAVING":   ContextWhereClause,
	"GROUP BY": ContextWhereClause,
	"ORDER BY": ContextWhereClause,
	"SET":      ContextWhereClause,
	"QUALIFY":  ContextWhereClause,
}

// caretContext is what the text around the caret says about the completion.
type caretContext struct {
	Type ContextType
	// Prefix is the partial identifier being typed.
	Prefix string
	// PrefixStart is the offset where Prefix begins.
	PrefixStart int
	// Qualifier is the name before the dot in "qualifier.prefix".
	Qualifier string
	// Clause is the clause keyword the context was derived from.
	Clause string
}

// detectContext determines the completion context at caret inside sc.
func detectContext(text string, sc scope.Scope, caret int) caretContext {
	start := identStart(text, caret)
	cc := caretContext{Prefix: text[start:caret], PrefixStart: start}

	bodyStart := 0
	if sc.Level > 0 {
		bodyStart = min(sc.Span.Start+1, start)
	}

	s := scope.NewScanner(text)
	cc.Clause = lastClause(s, bodyStart, start)
	cc.Type = clauseContexts[cc.Clause]

	if start > 0 && text[start-1] == '.' {
		if q := qualifierBefore(text, start-1); q != "" {
			cc.Qualifier = q
			if cc.Type != ContextFromClause {
				cc.Type = ContextColumnAccess
			}
			return cc
		}
	}

	// Inside FROM only a position that starts an item completes table names.
	if cc.Type == ContextFromClause && !startsItem(text, bodyStart, start) {
		cc.Type = ContextUnknown
	}
	return cc
}

// lastClause returns the last top-level clause keyword in [from, end).
func lastClause(s *scope.Scanner, from, end int) string {
	last := ""
	for from < end {
		pos, kw := s.FindTopLevelKeyword(clauseKeywords, from, end)
		if pos < 0 {
			break
		}
		last = kw
		from = pos + len(kw)
	}
	return last
}

// startsItem reports whether the token before end is a comma or a word that
// introduces a table: FROM, JOIN and friends.
func startsItem(text string, from, end int) bool {
	i := end - 1
	for i >= from && isSpace(text[i]) {
		i--
	}
	if i < from {
		return false
	}
	if text[i] == ',' {
		return true
	}
	word := strings.ToUpper(text[identStart(text, i+1) : i+1])
	switch word {
	case "FROM", "JOIN", "UPDATE", "INTO", "USING", "LATERAL", "APPLY", "TABLE", "ONLY":
		return true
	}
	return false
}

// qualifierBefore returns the identifier ending right before the dot at dot.
// Quoted identifiers lose their quotes.
func qualifierBefore(text string, dot int) string {
	if dot > 0 && (text[dot-1] == '"' || text[dot-1] == '`' || text[dot-1] == ']') {
		closing := text[dot-1]
		opening := closing
		if closing == ']' {
			opening = '['
		}
		if open := strings.LastIndexByte(text[:dot-1], opening); open >= 0 {
			return text[open+1 : dot-1]
		}
		return ""
	}
	return text[identStart(text, dot):dot]
}

// identStart walks back from end over identifier characters.
func identStart(text string, end int) int {
	start := end
	for start > 0 && isIdentChar(text[start-1]) {
		start--
	}
	return start
}

// wordAt returns the identifier around offset and its start.
func wordAt(text string, offset int) (string, int) {
	if offset < 0 || offset > len(text) {
		return "", offset
	}
	start := identStart(text, offset)
	end := offset
	for end < len(text) && isIdentChar(text[end]) {
		end++
	}
	return text[start:end], start
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '$' || c == '#' || c == '@' || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
