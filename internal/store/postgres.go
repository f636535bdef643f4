package store

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

var assetColumns = []string{"id", "app_id", "user_id", "asset_type", "content", "created_at", "updated_at"}

// Postgres stores assets in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres creates a pool from cfg and verifies the connection.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Pool returns the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Migrate applies the PostgreSQL migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return runMigrations(ctx, db, "postgres", "postgres")
}

// SchemaVersion returns the latest applied migration.
func (p *Postgres) SchemaVersion(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return schemaVersion(ctx, db, "postgres")
}

// InsertAssets copies the batch into the assets table in one transaction.
func (p *Postgres) InsertAssets(ctx context.Context, batch []transfer.AssetInsert) ([]transfer.Asset, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC().Truncate(time.Microsecond)
	out := make([]transfer.Asset, len(batch))
	rows := make([][]any, len(batch))
	for i, ins := range batch {
		id := uuid.New()
		out[i] = transfer.Asset{
			ID:        id.String(),
			AppID:     ins.AppID,
			UserID:    ins.UserID,
			AssetType: ins.AssetType,
			Content:   ins.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		rows[i] = []any{
			pgtype.UUID{Bytes: id, Valid: true},
			ins.AppID,
			pgtype.Text{String: ins.UserID, Valid: ins.UserID != ""},
			ins.AssetType,
			ins.Content,
			now,
			now,
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"assets"}, assetColumns, pgx.CopyFromRows(rows)); err != nil {
		return nil, fmt.Errorf("copy assets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// StreamAssets yields the app's matching assets ordered by creation time,
// then insertion order.
func (p *Postgres) StreamAssets(ctx context.Context, appID string, filters transfer.Filters) iter.Seq2[transfer.Asset, error] {
	return func(yield func(transfer.Asset, error) bool) {
		where, args := assetWhere(NewWhereBuilder(Dollar), appID, filters,
			func(wb *WhereBuilder, ids []string) { wb.AddAny("id::text", ids) },
			func(t time.Time) any { return t },
		)
		query := `SELECT id::text, app_id, user_id, asset_type, content, created_at, updated_at
			FROM assets` + where + ` ORDER BY created_at, seq`

		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			yield(transfer.Asset{}, fmt.Errorf("query assets: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				a      transfer.Asset
				userID pgtype.Text
			)
			if err := rows.Scan(&a.ID, &a.AppID, &userID, &a.AssetType, &a.Content, &a.CreatedAt, &a.UpdatedAt); err != nil {
				yield(transfer.Asset{}, fmt.Errorf("scan asset: %w", err))
				return
			}
			a.UserID = userID.String
			a.CreatedAt = a.CreatedAt.UTC()
			a.UpdatedAt = a.UpdatedAt.UTC()
			if !yield(a, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(transfer.Asset{}, fmt.Errorf("read assets: %w", err))
		}
	}
}
