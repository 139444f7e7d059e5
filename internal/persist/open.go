package persist

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/clover/server/internal/config"
	"github.com/clover/server/internal/world"
)

// Open connects to the configured backend, applies migrations and returns a
// world persister together with the handle to close on shutdown.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (world.Persister, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if err := RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return NewWorldRepo(db), db, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.DSN, log)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteWorldRepo(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
