package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
	"github.com/spf13/cobra"
)

// NewScopesCommand creates the scopes command.
func NewScopesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes [file]",
		Short: "Show the scope tree of a SQL text",
		Long: `Parse SQL and print every scope: the root statement, each subquery,
derived table and CTE body, with its tables, alias and exposed columns.

Reads stdin when no file is given.`,
		Example: `  # Scopes of a file
  sqlscope scopes query.sql

  # From stdin, as JSON
  echo "SELECT * FROM (SELECT id FROM t) d" | sqlscope scopes -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScopes(cmd, args)
		},
	}
}

func runScopes(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	scopes := scope.Parse(text)
	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(scopes)
	}

	r.Header(1, fmt.Sprintf("Scopes (%d)", len(scopes)))
	r.Table(scopeHeaders, scopeRows(scopes))
	for _, sc := range scopes {
		if sc.Unterminated {
			r.Warning(fmt.Sprintf("scope %d is not closed (opened at offset %d)", sc.Index, sc.Span.Start))
		}
	}
	return nil
}

var scopeHeaders = []string{"#", "level", "parent", "name", "span", "tables", "columns"}

func scopeRows(scopes []scope.Scope) [][]string {
	rows := make([][]string, 0, len(scopes))
	for _, sc := range scopes {
		parent := "-"
		if sc.HasParent() {
			parent = strconv.Itoa(sc.Parent)
		}
		rows = append(rows, []string{
			strconv.Itoa(sc.Index),
			strconv.Itoa(sc.Level),
			parent,
			scopeName(sc),
			fmt.Sprintf("%d-%d", sc.Span.Start, sc.Span.End),
			tableList(sc.Tables),
			strings.Join(sc.ExposedColumns, ", "),
		})
	}
	return rows
}

func scopeName(sc scope.Scope) string {
	switch {
	case sc.CTEName != "":
		return "cte " + sc.CTEName
	case sc.Alias != "":
		return sc.Alias
	case !sc.HasParent():
		return "(root)"
	}
	return ""
}

func tableList(refs []scope.TableRef) string {
	parts := make([]string, 0, len(refs))
	for _, t := range refs {
		name := t.FullName()
		if t.IsDerivedTable {
			name = fmt.Sprintf("(scope %d)", t.DerivedScope)
		}
		if t.Alias != "" {
			name += " " + t.Alias
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}
