package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/orderingest/internal/config"
	"github.com/JonMunkholm/orderingest/internal/core"
)

// Open returns the sink selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := NewSQLiteStore(cfg.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, NewStoreError("Open", "", fmt.Sprintf("driver %q", cfg.Driver), ErrUnsupportedDriver)
	}
}
