// Package store persists reference geography, indicator definitions and the
// synchronization audit trail. Postgres and SQLite backends share one
// interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/urbix/urbix-etl/internal/config"
	"github.com/urbix/urbix-etl/internal/model"
)

// Store is a handle on the relational store. The caller that opens it
// closes it.
type Store interface {
	// Begin starts a unit of work. The caller decides commit or rollback.
	Begin(ctx context.Context) (Tx, error)

	// Audit trail
	RecordSyncRun(ctx context.Context, run *model.SyncRun) error
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Lifecycle
	EnsureSchema(ctx context.Context) error
	Close() error
}

// Tx is a unit of work. Lookups return (nil, nil) when nothing matches.
// Inserts set the surrogate ID on the passed entity.
type Tx interface {
	// Regions
	RegionByCode(ctx context.Context, code string) (*model.Region, error)
	InsertRegion(ctx context.Context, r *model.Region) error
	UpdateRegion(ctx context.Context, id int64, u model.RegionUpdate) error

	// Sub-regions
	SubRegionByCode(ctx context.Context, code string) (*model.SubRegion, error)
	InsertSubRegion(ctx context.Context, s *model.SubRegion) error
	UpdateSubRegion(ctx context.Context, id int64, u model.SubRegionUpdate) error
	ListSubRegions(ctx context.Context, limit int) ([]model.SubRegion, error)

	// Indicator catalog
	CategoryByName(ctx context.Context, name string) (*model.Category, error)
	InsertCategory(ctx context.Context, c *model.Category) error
	IndicatorByCode(ctx context.Context, code string) (*model.IndicatorDefinition, error)
	InsertIndicator(ctx context.Context, d *model.IndicatorDefinition) error
	UpdateIndicator(ctx context.Context, id int64, u model.IndicatorUpdate) error
	ListIndicators(ctx context.Context, limit int) ([]model.IndicatorDefinition, error)

	// Indicator values
	HasIndicatorValue(ctx context.Context, subRegionID, indicatorID int64) (bool, error)
	InsertIndicatorValue(ctx context.Context, v *model.IndicatorValue) error

	Commit(ctx context.Context) error
	// Rollback is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// nullID maps the zero surrogate key to NULL.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
