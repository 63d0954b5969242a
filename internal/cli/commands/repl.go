package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/leapstack-labs/sqlscope/pkg/scope"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "sqlscope> "
	replContPrompt = "     ...> "
)

var dotCommands = []string{".help", ".tables", ".reload", ".clear", ".quit", ".exit"}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive scope and completion explorer",
		Long: `Type SQL and explore it. Tab completes using the scope engine and the
configured catalog.

A statement ending in ";" prints its scope tree. A statement containing "|"
runs immediately and prints what is visible at that caret and the completion
candidates there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
}

func runREPL(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	sess := &replSession{
		ctx:    ctx,
		engine: cc.Engine,
		static: cc.Sources.Static,
		file:   cc.Cfg.Catalog.File,
		r:      cc.Renderer,
	}

	var historyFile string
	if cc.Cfg.Catalog.Cache != "" {
		historyFile = filepath.Join(filepath.Dir(cc.Cfg.Catalog.Cache), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    &engineCompleter{ctx: ctx, engine: cc.Engine, pending: sess.pending},
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sqlscope REPL. Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if sess.handleLine(line) {
			return nil
		}
		if sess.pending() != "" {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// replSession is the REPL state between lines.
type replSession struct {
	ctx    context.Context
	engine *completion.Engine
	static *catalog.Static
	file   string
	r      *output.Renderer
	buf    strings.Builder
}

func (s *replSession) pending() string {
	return s.buf.String()
}

// handleLine processes one input line and reports whether to quit.
func (s *replSession) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if s.buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return s.dotCommand(trimmed)
	}

	s.buf.WriteString(line)
	if !strings.Contains(line, CaretMarker) && !strings.HasSuffix(trimmed, ";") {
		s.buf.WriteString("\n")
		return false
	}

	text := s.buf.String()
	s.buf.Reset()
	if err := s.run(text); err != nil {
		s.r.Error(err.Error())
	}
	s.r.Println("")
	return false
}

func (s *replSession) run(text string) error {
	if !strings.Contains(text, CaretMarker) {
		scopes := scope.Parse(text)
		if s.r.EffectiveMode() == output.ModeJSON {
			return s.r.JSON(scopes)
		}
		s.r.Table(scopeHeaders, scopeRows(scopes))
		return nil
	}

	text, offset, err := caretInput(text, 0, false)
	if err != nil {
		return err
	}
	in, err := s.engine.Inspect(s.ctx, text, offset)
	if err != nil {
		s.r.Warning("catalog lookup incomplete: " + err.Error())
	}
	if err := renderInspection(s.r, in); err != nil {
		return err
	}
	return renderCompletion(s.r, s.engine.Complete(s.ctx, text, offset))
}

func (s *replSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		s.r.Println(replHelp)

	case ".tables":
		schema := s.engine.Options().DefaultSchema
		if len(parts) > 1 {
			schema = parts[1]
		}
		names, err := catalog.ListTables(s.ctx, s.engine.Catalog(), schema)
		if err != nil {
			s.r.Error(err.Error())
			return false
		}
		rows := make([][]string, len(names))
		for i, n := range names {
			rows[i] = []string{n.Schema, n.Name}
		}
		s.r.Table([]string{"schema", "table"}, rows)

	case ".reload":
		if s.static == nil || s.file == "" {
			s.r.Warning("no catalog file configured")
			return false
		}
		if err := s.static.Reload(s.file); err != nil {
			s.r.Error(err.Error())
			return false
		}
		s.r.Success("reloaded " + s.file)

	case ".clear":
		s.r.Printf("\033[H\033[2J")

	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", parts[0]))
	}
	return false
}

const replHelp = `
Commands:
  .help             Show this help message
  .tables [schema]  List catalog tables
  .reload           Reload the catalog file
  .clear            Clear the screen
  .quit / .exit     Exit the REPL

Tips:
  - End a statement with ; to see its scopes
  - Put | where the caret is to see what is visible there
  - Tab completes columns, aliases, tables and keywords
`

// engineCompleter adapts the completion engine to readline.
type engineCompleter struct {
	ctx     context.Context
	engine  *completion.Engine
	pending func() string
}

var _ readline.AutoCompleter = (*engineCompleter)(nil)

// Do returns the remainders of every candidate after the typed prefix, and
// the prefix length in runes.
func (c *engineCompleter) Do(line []rune, pos int) ([][]rune, int) {
	typed := string(line[:pos])
	if c.pending() == "" && strings.HasPrefix(typed, ".") {
		var out [][]rune
		for _, dc := range dotCommands {
			if strings.HasPrefix(dc, typed) {
				out = append(out, []rune(dc[len(typed):]))
			}
		}
		return out, len([]rune(typed))
	}

	head := c.pending() + typed
	res := c.engine.Complete(c.ctx, head+string(line[pos:]), len(head))

	prefix := len([]rune(res.Prefix))
	out := make([][]rune, 0, len(res.Items))
	for _, it := range res.Items {
		label := []rune(it.Label)
		if len(label) < prefix {
			continue
		}
		out = append(out, label[prefix:])
	}
	return out, prefix
}
