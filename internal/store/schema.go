package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Initialize creates the tables of every registered App in one transaction
// and records each App. It expects a brand-new store: there is no
// migration, and an existing table makes it fail.
func (s *Store) Initialize(ctx context.Context) error {
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		return initialize(ctx, tx, Apps)
	})
}

func initialize(ctx context.Context, tx DBTX, apps []App) error {
	for _, app := range apps {
		if _, err := tx.ExecContext(ctx, app.DDL); err != nil {
			return fmt.Errorf("create schema for %s: %w", app.Name, err)
		}
	}
	for _, app := range apps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO app (name, version, url) VALUES (?, ?, ?)`,
			app.Name, app.Version, app.URL,
		); err != nil {
			return fmt.Errorf("register app %s: %w", app.Name, classify(err))
		}
	}
	return nil
}
