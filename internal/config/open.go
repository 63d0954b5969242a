package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlscope/internal/state"
	"github.com/leapstack-labs/sqlscope/pkg/adapter"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"

	// Register the database adapters.
	_ "github.com/leapstack-labs/sqlscope/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/sqlscope/pkg/adapters/postgres"
)

// Sources is the catalog a ProjectConfig describes, with the resources
// behind it.
type Sources struct {
	// Catalog is nil when nothing is configured.
	Catalog catalog.Catalog
	Static  *catalog.Static
	Cache   *state.SQLiteStore
	Target  adapter.Adapter
}

// OpenSources builds the catalog: the static file first, then the target
// database read through the SQLite cache. A target that cannot be reached
// is logged and skipped so completion keeps working from what is local.
func OpenSources(ctx context.Context, cfg *ProjectConfig, logger *slog.Logger) (*Sources, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	src := &Sources{}
	var chain catalog.Chain

	if cfg.Catalog.File != "" {
		static, err := catalog.LoadStatic(cfg.Catalog.File)
		if err != nil {
			return nil, err
		}
		src.Static = static
		chain = append(chain, static)
	}

	if cfg.Catalog.Cache != "" {
		store := state.NewSQLiteStore(logger)
		store.DefaultSchema = cfg.DefaultSchema()
		if err := store.Open(cfg.Catalog.Cache); err != nil {
			return nil, fmt.Errorf("failed to open catalog cache: %w", err)
		}
		src.Cache = store
	}

	if cfg.Target != nil {
		a, err := adapter.Open(ctx, cfg.Target.AdapterConfig(), logger)
		if err != nil {
			logger.Warn("target unavailable, using local catalog only",
				slog.String("type", cfg.Target.Type), slog.Any("error", err))
		} else {
			src.Target = a
		}
	}

	switch {
	case src.Cache != nil && src.Target != nil:
		chain = append(chain, &catalog.Cached{
			Store:  src.Cache,
			Source: adapter.AsCatalog(src.Target),
			Name:   cfg.Target.Type,
			Logger: logger,
		})
	case src.Cache != nil:
		chain = append(chain, src.Cache)
	case src.Target != nil:
		chain = append(chain, adapter.AsCatalog(src.Target))
	}

	switch len(chain) {
	case 0:
	case 1:
		src.Catalog = chain[0]
	default:
		src.Catalog = chain
	}
	return src, nil
}

// Close releases the cache and the target connection.
func (s *Sources) Close() error {
	var errs []error
	if s.Cache != nil {
		errs = append(errs, s.Cache.Close())
	}
	if s.Target != nil {
		errs = append(errs, s.Target.Close())
	}
	return errors.Join(errs...)
}
