package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold is how a database folds unquoted identifiers before lookup.
type Fold string

// Folding modes.
const (
	FoldNone  Fold = "none"
	FoldUpper Fold = "upper"
	FoldLower Fold = "lower"
)

// ParseFold parses a folding mode. The empty string means FoldNone.
func ParseFold(s string) (Fold, error) {
	switch f := Fold(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FoldNone:
		return FoldNone, nil
	case FoldUpper, FoldLower:
		return f, nil
	default:
		return FoldNone, fmt.Errorf("invalid identifier fold %q (want upper, lower or none)", s)
	}
}

// Apply folds an identifier. Casers are stateful, so each call builds its
// own.
func (f Fold) Apply(name string) string {
	switch f {
	case FoldUpper:
		return cases.Upper(language.Und).String(name)
	case FoldLower:
		return cases.Lower(language.Und).String(name)
	default:
		return name
	}
}

// key builds a case-insensitive map key for a table.
func key(schema, table string) string {
	c := cases.Upper(language.Und)
	return c.String(schema) + "\x00" + c.String(table)
}
