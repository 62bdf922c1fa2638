package startup

import (
	"context"
	"fmt"

	"github.com/chat-service/internal/logger"
	"github.com/chat-service/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations применяет встроенные SQL-миграции по порядку. Все миграции идемпотентны.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := migrations.Ordered()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("run migration %s: %w", name, err)
		}
		logger.Debugf("migration %s applied", name)
	}
	logger.Info("migrations applied")
	return nil
}
