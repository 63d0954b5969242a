// Package cli provides the command-line interface for sqlscope.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlscope/internal/cli/commands"
	"github.com/leapstack-labs/sqlscope/internal/cli/config"
	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/internal/lsp"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqlscope",
		Short: "sqlscope - SQL scope resolution for autocomplete",
		Long: `sqlscope works out, for any caret position in a SQL text, which query
block the caret is in and which tables, aliases and columns are visible
there, including outer query aliases usable in correlated subqueries.

It tolerates incomplete SQL, serves completions to editors over LSP and
HTTP, and reads table columns from a YAML catalog, a SQLite cache or a
live database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd.Name(), cfg.Verbose)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if used := config.GetConfigFileUsed(); used != "" {
				logger.Debug("using config file", slog.String("path", used))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: sqlscope.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().String("catalog", "", "Static YAML catalog file")
	rootCmd.PersistentFlags().String("cache", "", "SQLite catalog cache")
	rootCmd.PersistentFlags().String("schema", "", "Default schema for unqualified tables")
	rootCmd.PersistentFlags().Int("depth", 0, "Correlation depth: enclosing queries visible in a subquery")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.MarkPersistentFlagFilename("catalog", "yaml", "yml")

	lsp.Version = Version

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewScopesCommand())
	rootCmd.AddCommand(commands.NewVisibleCommand())
	rootCmd.AddCommand(commands.NewCompleteCommand())
	rootCmd.AddCommand(commands.NewCatalogCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewLSPCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger logs to stderr; stdout carries command output and the LSP
// protocol.
func newLogger(command string, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	} else if command == "serve" {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqlscope.

To load completions:

Bash:
  $ source <(sqlscope completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sqlscope completion bash > /etc/bash_completion.d/sqlscope
  # macOS:
  $ sqlscope completion bash > $(brew --prefix)/etc/bash_completion.d/sqlscope

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sqlscope completion zsh > "${fpath[1]}/_sqlscope"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ sqlscope completion fish | source

  # To load completions for each session, execute once:
  $ sqlscope completion fish > ~/.config/fish/completions/sqlscope.fish

PowerShell:
  PS> sqlscope completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> sqlscope completion powershell > sqlscope.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
