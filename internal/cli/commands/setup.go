package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlscope/internal/cli/config"
	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/internal/completion"
	intconfig "github.com/leapstack-labs/sqlscope/internal/config"
	"github.com/spf13/cobra"
)

// CaretMarker marks the caret position in SQL read from a file or stdin when
// no --offset is given.
const CaretMarker = "|"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Sources  *intconfig.Sources
	Engine   *completion.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the configured catalog
// opened and a completion engine over it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cc.Cfg.EngineOptions()
	if err != nil {
		return nil, nil, err
	}

	sources, err := intconfig.OpenSources(cmd.Context(), &cc.Cfg.ProjectConfig, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Sources = sources
	cc.Engine = completion.New(sources.Catalog, opts, cc.Logger)

	cleanup := func() {
		if err := sources.Close(); err != nil {
			cc.Logger.Warn("failed to close catalog sources", slog.Any("error", err))
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without opening
// any catalog. Useful for commands that only parse.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading
// it from the working directory when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// readInput reads SQL from the named file, or from stdin when no file (or
// "-") is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

// caretInput resolves the text and caret for visible and complete. An
// explicit offset wins; otherwise the first CaretMarker is removed and its
// position used, and without a marker the caret sits at the end.
func caretInput(text string, offset int, offsetSet bool) (string, int, error) {
	if offsetSet {
		if offset < 0 || offset > len(text) {
			return "", 0, fmt.Errorf("offset %d out of range [0, %d]", offset, len(text))
		}
		return text, offset, nil
	}
	if i := strings.Index(text, CaretMarker); i >= 0 {
		return text[:i] + text[i+len(CaretMarker):], i, nil
	}
	text = strings.TrimRight(text, "\n")
	return text, len(text), nil
}
