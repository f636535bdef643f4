package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/transfer/internal/transfer"
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// sqliteTime is fixed width so text comparison orders chronologically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLite stores assets in a single SQLite file.
//
// The pool holds one connection: SQLite allows a single writer, and
// serializing in the pool avoids SQLITE_BUSY under concurrent batch writes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// buildDSN adds WAL, busy timeout and immediate transactions to path.
func buildDSN(path string) string {
	path = strings.TrimPrefix(path, "sqlite://")
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// DB returns the underlying handle.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Migrate applies the SQLite migrations.
func (s *SQLite) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, "sqlite3", "sqlite")
}

// SchemaVersion returns the latest applied migration.
func (s *SQLite) SchemaVersion(ctx context.Context) (int64, error) {
	return schemaVersion(ctx, s.db, "sqlite3")
}

// InsertAssets writes the batch in one transaction.
func (s *SQLite) InsertAssets(ctx context.Context, batch []transfer.AssetInsert) ([]transfer.Asset, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO assets
		(id, app_id, user_id, asset_type, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stamp := now.Format(sqliteTime)
	out := make([]transfer.Asset, len(batch))
	for i, ins := range batch {
		a := transfer.Asset{
			ID:        uuid.NewString(),
			AppID:     ins.AppID,
			UserID:    ins.UserID,
			AssetType: ins.AssetType,
			Content:   ins.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		userID := sql.NullString{String: ins.UserID, Valid: ins.UserID != ""}
		if _, err := stmt.ExecContext(ctx, a.ID, a.AppID, userID, a.AssetType, a.Content, stamp, stamp); err != nil {
			return nil, fmt.Errorf("insert asset: %w", err)
		}
		out[i] = a
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// StreamAssets yields the app's matching assets ordered by creation time,
// then insertion order.
func (s *SQLite) StreamAssets(ctx context.Context, appID string, filters transfer.Filters) iter.Seq2[transfer.Asset, error] {
	return func(yield func(transfer.Asset, error) bool) {
		where, args := assetWhere(NewWhereBuilder(Question), appID, filters,
			func(wb *WhereBuilder, ids []string) { wb.AddIn("id", ids) },
			func(t time.Time) any { return t.UTC().Format(sqliteTime) },
		)
		query := `SELECT id, app_id, user_id, asset_type, content, created_at, updated_at
			FROM assets` + where + ` ORDER BY created_at, rowid`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(transfer.Asset{}, fmt.Errorf("query assets: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				a                transfer.Asset
				userID           sql.NullString
				created, updated string
			)
			if err := rows.Scan(&a.ID, &a.AppID, &userID, &a.AssetType, &a.Content, &created, &updated); err != nil {
				yield(transfer.Asset{}, fmt.Errorf("scan asset: %w", err))
				return
			}
			a.UserID = userID.String
			if a.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
				yield(transfer.Asset{}, fmt.Errorf("asset %s created_at: %w", a.ID, err))
				return
			}
			if a.UpdatedAt, err = time.Parse(sqliteTime, updated); err != nil {
				yield(transfer.Asset{}, fmt.Errorf("asset %s updated_at: %w", a.ID, err))
				return
			}
			if !yield(a, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(transfer.Asset{}, fmt.Errorf("read assets: %w", err))
		}
	}
}
