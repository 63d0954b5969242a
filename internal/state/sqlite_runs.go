package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// StartRun records the start of a sync from source.
func (s *SQLiteStore) StartRun(ctx context.Context, source string) (*SyncRun, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run := &SyncRun{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("starting sync run", slog.String("id", run.ID), slog.String("source", source))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, source, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Source, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run finished. A non-nil runErr is stored as the run's
// error message.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *SyncRun, tables int, runErr error) error {
	if s.db == nil {
		return ErrNotOpen
	}

	now := time.Now().UTC()
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET finished_at = ?, table_count = ?, error = ? WHERE id = ?`,
		now, tables, msg, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sync run not found: %s", run.ID)
	}

	run.FinishedAt = &now
	run.TableCount = tables
	run.Error = msg.String
	return nil
}

// LastRun returns the most recent run for source.
func (s *SQLiteStore) LastRun(ctx context.Context, source string) (*SyncRun, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run := &SyncRun{}
	var (
		finished sql.NullTime
		msg      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, finished_at, table_count, error
		 FROM sync_runs WHERE source = ? ORDER BY started_at DESC LIMIT 1`,
		source,
	).Scan(&run.ID, &run.Source, &run.StartedAt, &finished, &run.TableCount, &msg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no sync run for source %s", source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.Error = msg.String
	return run, nil
}
