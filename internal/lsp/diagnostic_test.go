package lsp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

func testServer(t *testing.T, cat catalog.Catalog) *Server {
	t.Helper()
	s := NewServerWithLogger(&bytes.Buffer{}, &bytes.Buffer{}, testutil.NewTestLogger(t))
	opts := completion.DefaultOptions()
	opts.DefaultSchema = "sales"
	s.engine = completion.New(cat, opts, s.logger)
	return s
}

func staticCatalog() *catalog.Static {
	return catalog.NewStatic(catalog.File{
		DefaultSchema: "sales",
		Schemas: map[string]map[string][]string{
			"sales": {"orders": {"id", "customer_id", "amount"}},
		},
	})
}

func codes(diags []Diagnostic) []string {
	out := []string{}
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

type failingCatalog struct{}

func (failingCatalog) Columns(context.Context, string, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		cat  catalog.Catalog
		want []string
	}{
		{"clean", "SELECT o.id FROM orders o", staticCatalog(), []string{}},
		{"unknown table", "SELECT * FROM nope", staticCatalog(), []string{CodeUnknownTable}},
		{"schema qualified known", "SELECT * FROM sales.orders", staticCatalog(), []string{}},
		{"derived without alias", "SELECT * FROM (SELECT 1 AS n)", staticCatalog(), []string{CodeDerivedNoAlias}},
		{"derived with alias", "SELECT * FROM (SELECT 1 AS n) d", staticCatalog(), []string{}},
		{"cte reference is not a table", "WITH c AS (SELECT 1 AS x) SELECT * FROM c", staticCatalog(), []string{}},
		{"no catalog", "SELECT * FROM nope", nil, []string{}},
		{"failing catalog", "SELECT * FROM nope", failingCatalog{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, tt.cat)
			doc := newDocument("file:///q.sql", tt.sql, 1)
			assert.Equal(t, tt.want, codes(s.diagnose(context.Background(), doc)))
		})
	}
}

func TestDiagnose_Unclosed(t *testing.T) {
	s := testServer(t, nil)
	doc := newDocument("file:///q.sql", "SELECT *\nFROM (SELECT 1", 1)

	diags := s.diagnose(context.Background(), doc)
	require.Contains(t, codes(diags), CodeUnclosedSubquery)

	for _, d := range diags {
		if d.Code != CodeUnclosedSubquery {
			continue
		}
		assert.Equal(t, DiagnosticSeverityError, d.Severity)
		assert.Equal(t, Range{Start: Position{Line: 1, Character: 5}, End: Position{Line: 1, Character: 6}}, d.Range)
		assert.Equal(t, "sqlscope", d.Source)
	}
}

func TestDiagnose_UnknownTableRange(t *testing.T) {
	s := testServer(t, staticCatalog())
	doc := newDocument("file:///q.sql", "SELECT *\nFROM orders o\nJOIN hr.staff s ON true", 1)

	diags := s.diagnose(context.Background(), doc)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnknownTable, diags[0].Code)
	assert.Equal(t, DiagnosticSeverityInformation, diags[0].Severity)
	assert.Equal(t, uint32(2), diags[0].Range.Start.Line)
	assert.Equal(t, uint32(5), diags[0].Range.Start.Character)
	assert.Contains(t, diags[0].Message, "hr.staff")
}
