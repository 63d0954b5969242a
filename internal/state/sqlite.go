package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"

	// sqlite driver for the catalog cache.
	_ "modernc.org/sqlite"
)

// SQLiteStore is a catalog.Store backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// DefaultSchema replaces an empty schema on reads and writes.
	DefaultSchema string
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database and applies migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := MigrateWithDB(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.path = path
	s.logger.Debug("catalog cache opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) schema(schema string) string {
	if schema == "" {
		return s.DefaultSchema
	}
	return schema
}

// Columns implements catalog.Catalog. When neither the argument nor
// DefaultSchema names a schema, the table is matched in any schema, the
// alphabetically first one winning.
func (s *SQLiteStore) Columns(ctx context.Context, schema, table string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	schema = s.schema(schema)

	query := `SELECT schema_name, column_name FROM catalog_columns
		WHERE table_name = ?`
	args := []any{table}
	if schema != "" {
		query += ` AND schema_name = ?`
		args = append(args, schema)
	}
	query += ` ORDER BY schema_name, source, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		cols  []string
		first string
	)
	for rows.Next() {
		var sch, col string
		if err := rows.Scan(&sch, &col); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if len(cols) == 0 {
			first = sch
		}
		if !strings.EqualFold(sch, first) {
			break
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: %w", catalog.TableName{Schema: schema, Name: table}, catalog.ErrTableNotFound)
	}
	return dedupeFold(cols), nil
}

// Tables implements catalog.Lister.
func (s *SQLiteStore) Tables(ctx context.Context, schema string) ([]catalog.TableName, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	query := `SELECT DISTINCT schema_name, table_name FROM catalog_columns`
	var args []any
	if schema != "" {
		query += ` WHERE schema_name = ?`
		args = append(args, schema)
	}
	query += ` ORDER BY schema_name, table_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []catalog.TableName
	for rows.Next() {
		var t catalog.TableName
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// PutColumns implements catalog.Store, replacing whatever source had cached
// for the table.
func (s *SQLiteStore) PutColumns(ctx context.Context, source string, table catalog.TableName, columns []string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	schema := s.schema(table.Schema)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_columns WHERE source = ? AND schema_name = ? AND table_name = ?`,
		source, schema, table.Name,
	); err != nil {
		return fmt.Errorf("failed to clear columns of %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_columns (source, schema_name, table_name, position, column_name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, col := range columns {
		if _, err := stmt.ExecContext(ctx, source, schema, table.Name, i+1, col); err != nil {
			return fmt.Errorf("failed to insert column %s.%s: %w", table, col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit columns of %s: %w", table, err)
	}

	s.logger.Debug("cached columns",
		slog.String("source", source),
		slog.String("table", table.String()),
		slog.Int("columns", len(columns)))
	return nil
}

// Forget removes everything cached for source. It returns the number of
// column rows deleted.
func (s *SQLiteStore) Forget(ctx context.Context, source string) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_columns WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to forget source %s: %w", source, err)
	}
	return res.RowsAffected()
}

// dedupeFold drops repeated names when several sources cached one table.
func dedupeFold(cols []string) []string {
	seen := make(map[string]struct{}, len(cols))
	out := cols[:0:0]
	for _, c := range cols {
		k := strings.ToUpper(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

var (
	_ catalog.Store  = (*SQLiteStore)(nil)
	_ catalog.Lister = (*SQLiteStore)(nil)
)
