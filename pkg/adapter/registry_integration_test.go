package adapter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/leapstack-labs/sqlscope/pkg/adapter"
	"github.com/leapstack-labs/sqlscope/pkg/adapters/duckdb"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/sqlscope/pkg/adapters/postgres"
)

// seedDuckDB writes a database file holding sales.orders and main.customers.
func seedDuckDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warehouse.duckdb")

	seed := duckdb.New(nil)
	require.NoError(t, seed.Connect(ctx, adapter.Config{Path: path}))
	for _, stmt := range []string{
		"CREATE SCHEMA sales",
		"CREATE TABLE sales.orders (id INTEGER, customer_id INTEGER, amount DECIMAL(10,2))",
		"CREATE TABLE customers (id INTEGER, name VARCHAR)",
	} {
		_, err := seed.DB.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, seed.Close())
	return path
}

func TestRegisteredAdapters(t *testing.T) {
	for _, name := range []string{"duckdb", "postgres"} {
		assert.Contains(t, adapter.ListAdapters(), name)
		factory, ok := adapter.Get(name)
		require.True(t, ok, name)
		assert.NotNil(t, factory(nil), name)
	}
}

func TestOpenDuckDBAsCatalog(t *testing.T) {
	ctx := context.Background()
	path := seedDuckDB(t)

	a, err := adapter.Open(ctx, adapter.Config{Type: "duckdb", Path: path}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, "main", a.DefaultSchema())

	cat := adapter.AsCatalog(a)

	tests := []struct {
		name   string
		schema string
		table  string
		want   []string
	}{
		{"qualified", "sales", "orders", []string{"id", "customer_id", "amount"}},
		{"default schema", "", "customers", []string{"id", "name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := cat.Columns(ctx, tt.schema, tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cols)
		})
	}

	_, err = cat.Columns(ctx, "sales", "refunds")
	assert.True(t, catalog.IsNotFound(err), "unknown table: %v", err)

	tables, err := catalog.ListTables(ctx, cat, "sales")
	require.NoError(t, err)
	assert.Equal(t, []catalog.TableName{{Schema: "sales", Name: "orders"}}, tables)
}

func TestOpenUnknownType(t *testing.T) {
	_, err := adapter.Open(context.Background(), adapter.Config{Type: "db2"}, nil)

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "db2", unknown.Type)
	assert.Contains(t, unknown.Available, "duckdb")
	assert.Contains(t, unknown.Available, "postgres")
}

func TestOpenConnectFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x.duckdb")
	_, err := adapter.Open(context.Background(), adapter.Config{Type: "duckdb", Path: path}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to duckdb")
}
