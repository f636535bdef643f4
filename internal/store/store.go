// Package store persists assets for the transfer engine.
//
// Two backends implement transfer.Database: PostgreSQL through a pgx pool and
// SQLite through database/sql. Both write each batch in one transaction and
// stream exports oldest first.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

// Store is an asset database with a schema it can migrate.
type Store interface {
	transfer.Database

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error
	// SchemaVersion returns the latest applied migration.
	SchemaVersion(ctx context.Context) (int64, error)
	// Close releases the underlying connections.
	Close() error
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, cfg)
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.URL)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
