package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

// ErrNotConnected is returned when an adapter is used before Connect.
var ErrNotConnected = errors.New("database connection not established")

// Placeholder formats the nth (1-based) bind parameter.
type Placeholder func(n int) string

// QuestionPlaceholder formats "?" parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder formats "$n" parameters.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name, using
// defaultSchema when none is given.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	t := catalog.ParseTableName(table)
	if t.Schema == "" {
		return defaultSchema, t.Name
	}
	return t.Schema, t.Name
}

// GetTableMetadataCommon reads a table's columns from
// information_schema.columns.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table, defaultSchema string, ph Placeholder) (*Metadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := ParseQualifiedName(table, defaultSchema)

	//nolint:gosec // Placeholders are safe - they come from Placeholder funcs
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, ph(1), ph(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", schema, tableName, catalog.ErrTableNotFound)
	}

	return &Metadata{
		Schema:  schema,
		Name:    tableName,
		Columns: columns,
	}, nil
}

// ListTablesCommon reads table names from information_schema.tables,
// skipping the system schemas named in exclude.
func (b *BaseSQLAdapter) ListTablesCommon(ctx context.Context, schema string, ph Placeholder, exclude ...string) ([]catalog.TableName, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	query := `SELECT table_schema, table_name FROM information_schema.tables`
	var args []any
	switch {
	case schema != "":
		query += " WHERE table_schema = " + ph(1)
		args = append(args, schema)
	case len(exclude) > 0:
		marks := make([]string, len(exclude))
		for i, s := range exclude {
			marks[i] = ph(i + 1)
			args = append(args, s)
		}
		query += " WHERE table_schema NOT IN (" + strings.Join(marks, ", ") + ")"
	}
	query += " ORDER BY table_schema, table_name"

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []catalog.TableName
	for rows.Next() {
		var t catalog.TableName
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}
