package commands

import (
	"fmt"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/spf13/cobra"
)

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	opts := &CaretOptions{}
	cmd := &cobra.Command{
		Use:   "complete [file]",
		Short: "List completion candidates at a caret position",
		Long: `Run the completion engine at the caret and print the candidates in
ranking order: aliases, columns, outer-query aliases, tables, keywords.

The caret is --offset, or the position of a "|" in the input.`,
		Example: `  echo "SELECT o.| FROM orders o" | sqlscope complete
  sqlscope complete --offset 9 query.sql -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runComplete(cmd *cobra.Command, args []string, opts *CaretOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	text, offset, err := opts.resolve(cmd, args)
	if err != nil {
		return err
	}
	return renderCompletion(cc.Renderer, cc.Engine.Complete(cmd.Context(), text, offset))
}

func renderCompletion(r *output.Renderer, res completion.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}

	title := fmt.Sprintf("%d candidates (%s", len(res.Items), res.Context)
	if res.Qualifier != "" {
		title += ", after " + res.Qualifier + "."
	}
	if res.Prefix != "" {
		title += ", prefix " + res.Prefix
	}
	r.Header(1, title+")")

	if len(res.Items) == 0 {
		r.Muted("no candidates")
		return nil
	}
	rows := make([][]string, len(res.Items))
	for i, it := range res.Items {
		detail := it.Detail
		if it.FromParent {
			detail += " (outer query)"
		}
		rows[i] = []string{it.Label, string(it.Kind), detail}
	}
	r.Table([]string{"label", "kind", "detail"}, rows)
	if res.Truncated {
		r.Warning("list truncated; raise completion.max_items to see more")
	}
	return nil
}
