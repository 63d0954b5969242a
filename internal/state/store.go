// Package state persists catalog metadata in SQLite so completion does not
// need a live database connection. Columns fetched from a target are cached
// per source, and every sync is recorded as a run.
package state

import (
	"errors"
	"time"
)

// ErrNotOpen is returned by store operations before Open.
var ErrNotOpen = errors.New("database not opened")

// SyncRun records one catalog sync from a source.
type SyncRun struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	TableCount int        `json:"table_count"`
	Error      string     `json:"error,omitempty"`
}

// Done reports whether the run has finished.
func (r *SyncRun) Done() bool {
	return r.FinishedAt != nil
}
