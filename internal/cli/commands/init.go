package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	intconfig "github.com/leapstack-labs/sqlscope/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a sqlscope project",
		Long: `Initialize a project with a starter configuration.

This creates:
  - sqlscope.yaml configuration file
  - catalog.yaml static table catalog
  - queries/example.sql to try the commands on
  - .gitignore for the local catalog cache`,
		Example: `  # Initialize in current directory
  sqlscope init

  # Initialize in a new directory
  sqlscope init my-project

  # Force overwrite existing files
  sqlscope init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			mode, _ := cmd.Flags().GetString("output")
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(mode))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if existing := intconfig.FindConfigFile(dir); existing != "" && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", filepath.Base(existing))
	}

	if err := copyTemplate("project", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("project")
	for _, f := range files {
		r.Println("  " + r.Styles().Success.Render("+") + " " + f)
	}

	r.Println("")
	r.Success("sqlscope project initialized")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Describe your tables in catalog.yaml (or configure a target)")
	r.Println("  2. Run 'sqlscope scopes queries/example.sql'")
	r.Println("  3. Point your editor's SQL language server at 'sqlscope lsp'")
	return nil
}
