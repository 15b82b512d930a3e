package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrateLogPrefix = "db:migrate"

const createMigrationTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies every migration not yet recorded in schema_migrations, each in its
// own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}
	pending := pendingMigrations(migrations, applied)
	slog.Info(fmt.Sprintf("%s - Running %d of %d migrations", migrateLogPrefix, len(pending), len(migrations)))

	for _, m := range pending {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrateLogPrefix, m.ID(), err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrateLogPrefix, m.ID()))
	}
	return nil
}

// MigrationStatus prints each migration in migrationPath with its applied time or "pending".
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	migrations, err := LoadMigrations(migrationPath)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createMigrationTable); err != nil {
		return fmt.Errorf("%s - create schema_migrations: %w", migrateLogPrefix, err)
	}

	appliedAt := map[string]time.Time{}
	rows, err := pool.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("%s - read schema_migrations: %w", migrateLogPrefix, err)
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return fmt.Errorf("%s - scan schema_migrations: %w", migrateLogPrefix, err)
		}
		appliedAt[version] = at
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s - read schema_migrations: %w", migrateLogPrefix, err)
	}

	pending := 0
	for _, m := range migrations {
		if at, ok := appliedAt[m.Version]; ok {
			fmt.Printf("%-32s applied %s\n", m.ID(), at.UTC().Format(time.RFC3339))
			continue
		}
		pending++
		fmt.Printf("%-32s pending\n", m.ID())
	}
	if pending > 0 {
		fmt.Printf("%d pending (run 'fetcher migrate up')\n", pending)
	}
	return nil
}

// MigrationDown reverts the most recently applied migration using its down script.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	migrations, err := LoadMigrations(migrationPath)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createMigrationTable); err != nil {
		return fmt.Errorf("%s - create schema_migrations: %w", migrateLogPrefix, err)
	}

	var version string
	err = pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Println("Nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s - read schema_migrations: %w", migrateLogPrefix, err)
	}

	m, err := rollbackTarget(migrations, version)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s - rollback %s failed: %w", migrateLogPrefix, m.ID(), err)
	}
	fmt.Printf("Rolled back %s\n", m.ID())
	return nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	if _, err := pool.Exec(ctx, createMigrationTable); err != nil {
		return nil, fmt.Errorf("%s - create schema_migrations: %w", migrateLogPrefix, err)
	}
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - read schema_migrations: %w", migrateLogPrefix, err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - read schema_migrations: %w", migrateLogPrefix, err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
