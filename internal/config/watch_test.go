package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "catalog.yaml", "schemas: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, 20*time.Millisecond, testutil.NewTestLogger(t), func() { calls.Add(1) })
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, dir, "other.yaml", "x")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("schemas: {a: {}}\n"), 0o600))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchFileMissingDir(t *testing.T) {
	err := WatchFile(context.Background(), filepath.Join(t.TempDir(), "nope", "catalog.yaml"), 0, nil, func() {})
	assert.Error(t, err)
}
