package completion

import (
	"context"
	"fmt"
	"strings"
)

// Hover describes the alias under offset: the table it names, or the
// columns a derived table or CTE exposes. It reports false when the word at
// offset is not a visible alias.
func (e *Engine) Hover(ctx context.Context, text string, offset int) (string, bool) {
	offset = clamp(offset, len(text))
	word, start := wordAt(text, offset)
	if word == "" {
		return "", false
	}

	in, _ := e.Inspect(ctx, text, start)
	a, ok := in.Visibility.Lookup(word)
	if !ok {
		return "", false
	}

	var b strings.Builder
	switch {
	case a.Table.IsDerivedTable:
		fmt.Fprintf(&b, "**%s**: derived table", a.Name)
	case a.Table.CTEScope >= 0:
		fmt.Fprintf(&b, "**%s**: common table expression", a.Name)
	case a.Table.IsFunction:
		fmt.Fprintf(&b, "**%s**: table function `%s`", a.Name, a.Table.FullName())
	default:
		fmt.Fprintf(&b, "**%s**: table `%s`", a.Name, a.Table.FullName())
	}
	if a.IsFromParentScope {
		b.WriteString(" (outer query)")
	}

	if cols, _ := in.ColumnsOf(word); len(cols) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(cols, ", "))
	}
	return b.String(), true
}
