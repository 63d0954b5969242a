package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/sqlscope/internal/cli/output"
	"github.com/leapstack-labs/sqlscope/pkg/adapter"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and sync the table catalog",
		Long: `The catalog supplies base table columns to completion. It is layered:
a static YAML file (catalog.file), then the SQLite cache (catalog.cache)
filled from the target database.`,
	}
	cmd.AddCommand(newCatalogSyncCommand())
	cmd.AddCommand(newCatalogListCommand())
	cmd.AddCommand(newCatalogStatusCommand())
	return cmd
}

// SyncOptions holds options for catalog sync.
type SyncOptions struct {
	From   string
	Schema string
}

func newCatalogSyncCommand() *cobra.Command {
	opts := &SyncOptions{}
	cmd := &cobra.Command{
		Use:   "sync [schema.table ...]",
		Short: "Copy column lists into the catalog cache",
		Long: `Copy column lists from the target database (or a static YAML catalog
given with --from) into the SQLite cache, so completion works offline.

Without table arguments every table of --schema is copied.`,
		Example: `  # Everything in the target's default schema
  sqlscope catalog sync --cache .sqlscope/catalog.db

  # Selected tables
  sqlscope catalog sync sales.orders sales.customers

  # Seed the cache from a YAML catalog
  sqlscope catalog sync --from catalog.yaml --schema hr`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogSync(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "Static YAML catalog to copy instead of the target")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Schema to list when no tables are given (default: catalog default schema)")
	return cmd
}

func runCatalogSync(cmd *cobra.Command, args []string, opts *SyncOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cc.Sources.Cache
	if store == nil {
		return errors.New("no catalog cache configured; set catalog.cache or pass --cache")
	}

	var (
		source string
		src    catalog.Catalog
		schema = opts.Schema
	)
	switch {
	case opts.From != "":
		static, err := catalog.LoadStatic(opts.From)
		if err != nil {
			return err
		}
		source = "file:" + filepath.Base(opts.From)
		src = static
		if schema == "" {
			schema = static.DefaultSchema()
		}
	case cc.Sources.Target != nil:
		source = cc.Cfg.Target.Type
		src = adapter.AsCatalog(cc.Sources.Target)
	default:
		return errors.New("nothing to sync from; configure a target or pass --from")
	}
	if schema == "" {
		schema = cc.Cfg.DefaultSchema()
	}

	tables := make([]catalog.TableName, 0, len(args))
	for _, arg := range args {
		s, name := adapter.ParseQualifiedName(arg, schema)
		tables = append(tables, catalog.TableName{Schema: s, Name: name})
	}

	run, err := store.Sync(cmd.Context(), source, src, schema, tables)
	if err != nil {
		return fmt.Errorf("sync from %s failed: %w", source, err)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}
	r.Success(fmt.Sprintf("synced %d tables from %s into %s", run.TableCount, source, store.Path()))
	r.Muted("run " + run.ID)
	return nil
}

func newCatalogListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [schema]",
		Short: "List the tables the catalog knows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd, args)
		},
	}
}

// tableEntry is one catalog table in list output.
type tableEntry struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cat := cc.Sources.Catalog
	if cat == nil {
		return errors.New("no catalog configured; set catalog.file, catalog.cache or target")
	}
	schema := cc.Cfg.DefaultSchema()
	if len(args) == 1 {
		schema = args[0]
	}

	ctx := cmd.Context()
	names, err := catalog.ListTables(ctx, cat, schema)
	if err != nil {
		return err
	}
	entries := make([]tableEntry, 0, len(names))
	for _, n := range names {
		cols, err := cat.Columns(ctx, n.Schema, n.Name)
		if err != nil && !catalog.IsNotFound(err) {
			return err
		}
		entries = append(entries, tableEntry{Schema: n.Schema, Name: n.Name, Columns: cols})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}
	r.Header(1, fmt.Sprintf("Tables (%d)", len(entries)))
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Schema, e.Name, strconv.Itoa(len(e.Columns)), strings.Join(e.Columns, ", ")}
	}
	r.Table([]string{"schema", "table", "#", "columns"}, rows)
	return nil
}

func newCatalogStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [source]",
		Short: "Show the last sync into the catalog cache",
		Long: `Show the most recent sync run for a source. The source defaults to the
configured target type; static files synced with --from are named
"file:<name>".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogStatus(cmd, args)
		},
	}
}

func runCatalogStatus(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cc.Sources.Cache
	if store == nil {
		return errors.New("no catalog cache configured; set catalog.cache or pass --cache")
	}
	var source string
	switch {
	case len(args) == 1:
		source = args[0]
	case cc.Cfg.Target != nil:
		source = cc.Cfg.Target.Type
	default:
		return errors.New("no source given and no target configured")
	}

	run, err := store.LastRun(cmd.Context(), source)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}
	r.Header(1, "Last sync from "+source)
	status := "running"
	if run.Done() {
		status = "ok"
		if run.Error != "" {
			status = "failed: " + run.Error
		}
	}
	r.Table([]string{"run", "started", "tables", "status"}, [][]string{{
		run.ID,
		run.StartedAt.Local().Format(time.DateTime),
		strconv.Itoa(run.TableCount),
		status,
	}})
	return nil
}
