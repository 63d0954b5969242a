package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlscope/pkg/catalog"
)

// AsCatalog exposes an adapter as a catalog.Catalog and catalog.Lister.
func AsCatalog(a Adapter) catalog.Catalog {
	return &adapterCatalog{a: a}
}

type adapterCatalog struct {
	a Adapter
}

func (c *adapterCatalog) Columns(ctx context.Context, schema, table string) ([]string, error) {
	name := table
	if schema != "" {
		name = schema + "." + table
	}
	meta, err := c.a.GetTableMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return meta.ColumnNames(), nil
}

func (c *adapterCatalog) Tables(ctx context.Context, schema string) ([]catalog.TableName, error) {
	return c.a.ListTables(ctx, schema)
}

var _ catalog.Lister = (*adapterCatalog)(nil)
