package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend/memory"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend/postgres"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/db"
)

// OpenBackend returns the backend selected by cfg.Backend and a function
// releasing its resources.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (backend.Client, func(), error) {
	switch cfg.Backend {
	case BackendMemory:
		logger.Warn("using in-memory backend, data is lost on exit")
		return memory.New(), func() {}, nil
	case BackendPostgres:
		pool, err := db.New(ctx, db.Config{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			logger.Info("database migrations applied")
		}
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown backend %q", cfg.Backend)
	}
}
