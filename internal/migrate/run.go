// Package migrate applies the embedded SQL schema for the simulation store.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/target/simqueue/internal/data/pgxutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run applies all embedded migrations that are not yet recorded. It is safe to call multiple times.
func Run(ctx context.Context, db *sql.DB) error {
	_, err := Apply(ctx, db)
	return err
}

// Apply is Run, returning the versions applied by this call.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	files, err := Versions()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "migrations")
	var applied []string
	for _, f := range files {
		ok, applyErr := applyMigration(ctx, db, logger, f)
		if applyErr != nil {
			return applied, applyErr
		}
		if ok {
			applied = append(applied, strings.TrimSuffix(f, ".sql"))
		}
	}
	return applied, nil
}

// Versions lists the embedded migration files in apply order.
func Versions() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyMigration(ctx context.Context, db *sql.DB, logger *slog.Logger, file string) (bool, error) {
	version := strings.TrimSuffix(file, ".sql")

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", file, err)
	}
	if exists {
		return false, nil
	}

	body, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", file, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", version)

	err = pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, execErr := tx.ExecContext(ctx, string(body)); execErr != nil {
				return fmt.Errorf("exec migration %s: %w", file, execErr)
			}
			if _, insErr := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); insErr != nil {
				return fmt.Errorf("record migration %s: %w", file, insErr)
			}
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
