package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema scripts in filename order, one
// transaction per script. Every script uses create-if-absent DDL, so
// running Migrate on an already-migrated database is a no-op.
func (r *SQLite) Migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("%w: reading scripts: %w", ErrMigration, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	sort.Strings(names)

	for _, name := range names {
		script, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("%w: reading %q: %w", ErrMigration, name, err)
		}

		slog.Debug("applying migration", "script", name)

		err = r.withTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, string(script)); err != nil {
				return fmt.Errorf("executing: %w", err)
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrMigration, name, err)
		}
	}

	return nil
}
