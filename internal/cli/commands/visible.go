package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
	"github.com/spf13/cobra"
)

// CaretOptions holds the caret flags shared by visible and complete.
type CaretOptions struct {
	Offset int
}

func (o *CaretOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "Caret byte offset (default: the "+CaretMarker+" marker, else end of text)")
}

func (o *CaretOptions) resolve(cmd *cobra.Command, args []string) (string, int, error) {
	text, err := readInput(cmd, args)
	if err != nil {
		return "", 0, err
	}
	return caretInput(text, o.Offset, cmd.Flags().Changed("offset"))
}

// NewVisibleCommand creates the visible command.
func NewVisibleCommand() *cobra.Command {
	opts := &CaretOptions{}
	cmd := &cobra.Command{
		Use:   "visible [file]",
		Short: "Show what is visible at a caret position",
		Long: `Locate the scope around the caret and list everything it may reference:
its own aliases, aliases of enclosing queries (correlation), derived table
and CTE columns, and base table columns resolved through the catalog.

The caret is --offset, or the position of a "|" in the input.`,
		Example: `  echo "SELECT | FROM orders o JOIN customers c ON c.id = o.customer_id" | sqlscope visible
  sqlscope visible --offset 42 query.sql -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisible(cmd, args, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runVisible(cmd *cobra.Command, args []string, opts *CaretOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	text, offset, err := opts.resolve(cmd, args)
	if err != nil {
		return err
	}

	in, err := cc.Engine.Inspect(cmd.Context(), text, offset)
	if err != nil {
		cc.Logger.Warn("catalog lookup incomplete", slog.Any("error", err))
	}
	return renderInspection(cc.Renderer, in)
}

// visibleRow is one name usable at the caret.
type visibleRow struct {
	Name    string
	Source  string
	Origin  string
	Columns []string
}

func visibleRows(in completion.Inspection) []visibleRow {
	var rows []visibleRow
	add := func(list []scope.VisibleAlias, origin string) {
		for _, a := range list {
			cols, _ := in.ColumnsOf(a.Name)
			rows = append(rows, visibleRow{
				Name:    a.Name,
				Source:  aliasSource(a.Table),
				Origin:  origin,
				Columns: cols,
			})
		}
	}
	add(in.Visibility.Aliases, "scope "+strconv.Itoa(in.Scope.Index))
	add(in.Visibility.ParentAliases, "outer")
	return rows
}

func aliasSource(t scope.TableRef) string {
	switch {
	case t.IsDerivedTable:
		return fmt.Sprintf("derived (scope %d)", t.DerivedScope)
	case t.CTEScope >= 0:
		return fmt.Sprintf("cte %s (scope %d)", t.TableName, t.CTEScope)
	case t.IsFunction:
		return "function " + t.FullName()
	}
	return t.FullName()
}

func renderInspection(r *output.Renderer, in completion.Inspection) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(in)
	}

	path := make([]string, len(in.Path))
	for i, p := range in.Path {
		path[i] = strconv.Itoa(p)
	}
	r.Header(1, fmt.Sprintf("Scope %d at offset %d", in.Scope.Index, in.Offset))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Path", strings.Join(path, " > ")))
		r.Println("")
	} else {
		r.Println(r.Styles().Key.Render("path: ") + strings.Join(path, " > "))
	}

	rows := visibleRows(in)
	if len(rows) == 0 {
		r.Muted("nothing visible")
		return nil
	}
	cells := make([][]string, len(rows))
	for i, v := range rows {
		cols := strings.Join(v.Columns, ", ")
		if len(v.Columns) == 0 {
			cols = "?"
		}
		cells[i] = []string{v.Name, v.Source, v.Origin, cols}
	}
	r.Table([]string{"name", "source", "visible from", "columns"}, cells)
	return nil
}
