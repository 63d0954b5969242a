package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

// Sync copies column lists from src into the store under source. When tables
// is empty every table src lists in schema is copied; src must then be a
// catalog.Lister. Tables src does not know are skipped and logged. The sync
// is recorded as a run whatever its outcome.
func (s *SQLiteStore) Sync(ctx context.Context, source string, src catalog.Catalog, schema string, tables []catalog.TableName) (*SyncRun, error) {
	run, err := s.StartRun(ctx, source)
	if err != nil {
		return nil, err
	}

	count, syncErr := s.sync(ctx, source, src, schema, tables)
	if err := s.FinishRun(ctx, run, count, syncErr); err != nil {
		return run, errors.Join(syncErr, err)
	}
	return run, syncErr
}

func (s *SQLiteStore) sync(ctx context.Context, source string, src catalog.Catalog, schema string, tables []catalog.TableName) (int, error) {
	if len(tables) == 0 {
		lister, ok := src.(catalog.Lister)
		if !ok {
			return 0, fmt.Errorf("source %s cannot list tables", source)
		}
		listed, err := lister.Tables(ctx, schema)
		if err != nil {
			return 0, fmt.Errorf("failed to list tables: %w", err)
		}
		tables = listed
	}

	count := 0
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		cols, err := src.Columns(ctx, t.Schema, t.Name)
		if catalog.IsNotFound(err) {
			s.logger.Warn("table not found in source", slog.String("table", t.String()))
			continue
		}
		if err != nil {
			return count, fmt.Errorf("failed to read columns of %s: %w", t, err)
		}
		if err := s.PutColumns(ctx, source, t, cols); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
