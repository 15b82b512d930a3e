package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearResources deletes every stored document. The schema is kept.
func ClearResources(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing resources table", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE resources`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Resources cleared", clearLogPrefix))
	return nil
}
