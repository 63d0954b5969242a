package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		expectErr bool
	}{
		{
			name:      "close with nil DB",
			setupDB:   false,
			expectErr: false,
		},
		{
			name:      "close with open DB",
			setupDB:   true,
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			err := base.Close()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSQLAdapter_IsConnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	assert.False(t, base.IsConnected())

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base.DB = db
	assert.True(t, base.IsConnected())
}

func TestParseQualifiedName(t *testing.T) {
	tests := []struct {
		table      string
		schema     string
		wantSchema string
		wantName   string
	}{
		{"orders", "public", "public", "orders"},
		{"sales.orders", "public", "sales", "orders"},
		{"orders", "", "", "orders"},
	}
	for _, tt := range tests {
		schema, name := ParseQualifiedName(tt.table, tt.schema)
		assert.Equal(t, tt.wantSchema, schema, tt.table)
		assert.Equal(t, tt.wantName, name, tt.table)
	}
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		table     string
		setupMock func(mock sqlmock.Sqlmock)
		wantCols  []string
		wantErr   error
		errMsg    string
	}{
		{
			name:    "without connection",
			setupDB: false,
			table:   "orders",
			wantErr: ErrNotConnected,
		},
		{
			name:    "columns in order",
			setupDB: true,
			table:   "orders",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
					AddRow("id", "integer", "NO", 1).
					AddRow("amount", "numeric", "YES", 2)
				mock.ExpectQuery("FROM information_schema.columns").
					WithArgs("public", "orders").
					WillReturnRows(rows)
			},
			wantCols: []string{"id", "amount"},
		},
		{
			name:    "qualified name",
			setupDB: true,
			table:   "sales.orders",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
					AddRow("id", "integer", "NO", 1)
				mock.ExpectQuery("FROM information_schema.columns").
					WithArgs("sales", "orders").
					WillReturnRows(rows)
			},
			wantCols: []string{"id"},
		},
		{
			name:    "unknown table",
			setupDB: true,
			table:   "missing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM information_schema.columns").
					WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))
			},
			wantErr: catalog.ErrTableNotFound,
		},
		{
			name:    "query error",
			setupDB: true,
			table:   "orders",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM information_schema.columns").WillReturnError(assert.AnError)
			},
			errMsg: "failed to query column metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				tt.setupMock(mock)
				base.DB = db
			}

			meta, err := base.GetTableMetadataCommon(context.Background(), tt.table, "public", DollarPlaceholder)
			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCols, meta.ColumnNames())
				assert.True(t, meta.Columns[0].Position > 0)
			}
		})
	}
}

func TestBaseSQLAdapter_ListTablesCommon(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base := &BaseSQLAdapter{DB: db}

	mock.ExpectQuery(`FROM information_schema.tables WHERE table_schema NOT IN \(\$1, \$2\)`).
		WithArgs("pg_catalog", "information_schema").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("public", "orders").
			AddRow("sales", "items"))

	tables, err := base.ListTablesCommon(context.Background(), "", DollarPlaceholder, "pg_catalog", "information_schema")
	require.NoError(t, err)
	assert.Equal(t, []catalog.TableName{{Schema: "public", Name: "orders"}, {Schema: "sales", Name: "items"}}, tables)

	mock.ExpectQuery(`FROM information_schema.tables WHERE table_schema = \?`).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).AddRow("sales", "items"))

	tables, err = base.ListTablesCommon(context.Background(), "sales", QuestionPlaceholder)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = (&BaseSQLAdapter{}).ListTablesCommon(context.Background(), "", QuestionPlaceholder)
	assert.ErrorIs(t, err, ErrNotConnected)
}
