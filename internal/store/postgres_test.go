package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

// openTestPostgres connects to TEST_DATABASE_URL and skips without it.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := OpenPostgres(ctx, config.DatabaseConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Migrate(ctx))
	return p
}

func TestPostgres_InsertAndStream(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()
	app := "test-" + uuid.NewString()

	t.Cleanup(func() {
		_, _ = p.Pool().Exec(context.Background(), "DELETE FROM assets WHERE app_id = $1", app)
	})

	inserted, err := p.InsertAssets(ctx, []transfer.AssetInsert{
		{AppID: app, UserID: "u1", AssetType: "note", Content: "first"},
		{AppID: app, AssetType: "svg", Content: "<svg/>"},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)

	got := drain(t, p, app, transfer.Filters{})
	require.Len(t, got, 2)
	assert.Equal(t, inserted[0].ID, got[0].ID)
	assert.Equal(t, "u1", got[0].UserID)
	assert.True(t, inserted[0].CreatedAt.Equal(got[0].CreatedAt))

	only := drain(t, p, app, transfer.Filters{IDs: []string{inserted[1].ID, "not-a-uuid"}})
	require.Len(t, only, 1)
	assert.Equal(t, "svg", only[0].AssetType)

	v, err := p.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, int64(1))
}
