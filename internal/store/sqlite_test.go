package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()

	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func drain(t *testing.T, db transfer.Database, appID string, f transfer.Filters) []transfer.Asset {
	t.Helper()
	var out []transfer.Asset
	for a, err := range db.StreamAssets(context.Background(), appID, f) {
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestSQLite_InsertAndStream(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	batch := []transfer.AssetInsert{
		{AppID: "app-1", UserID: "u1", AssetType: "note", Content: "first"},
		{AppID: "app-1", AssetType: "image/svg+xml", Content: "<svg/>"},
		{AppID: "app-2", AssetType: "note", Content: "other app"},
	}
	inserted, err := s.InsertAssets(ctx, batch)
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	assert.NotEmpty(t, inserted[0].ID)
	assert.NotEqual(t, inserted[0].ID, inserted[1].ID)

	got := drain(t, s, "app-1", transfer.Filters{})
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content, "insertion order within a batch")
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "", got[1].UserID)
	assert.Equal(t, inserted[0].CreatedAt, got[0].CreatedAt)
	assert.Equal(t, time.UTC, got[0].CreatedAt.Location())
}

func TestSQLite_Filters(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	first, err := s.InsertAssets(ctx, []transfer.AssetInsert{
		{AppID: "app-1", AssetType: "note", Content: "n1"},
		{AppID: "app-1", AssetType: "svg", Content: "s1"},
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	second, err := s.InsertAssets(ctx, []transfer.AssetInsert{
		{AppID: "app-1", AssetType: "note", Content: "n2"},
	})
	require.NoError(t, err)

	contents := func(assets []transfer.Asset) []string {
		var out []string
		for _, a := range assets {
			out = append(out, a.Content)
		}
		return out
	}

	assert.Equal(t, []string{"n1", "n2"}, contents(drain(t, s, "app-1", transfer.Filters{AssetType: "note"})))

	cut := second[0].CreatedAt
	assert.Equal(t, []string{"n2"}, contents(drain(t, s, "app-1", transfer.Filters{After: &cut})))
	assert.Equal(t, []string{"n1", "s1"}, contents(drain(t, s, "app-1", transfer.Filters{Before: &cut})))

	ids := []string{first[1].ID, second[0].ID}
	assert.Equal(t, []string{"s1", "n2"}, contents(drain(t, s, "app-1", transfer.Filters{IDs: ids})))
}

func TestSQLite_DuplicateIDMapsToSupportCode(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	inserted, err := s.InsertAssets(ctx, []transfer.AssetInsert{{AppID: "app-1", AssetType: "note", Content: "x"}})
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx, `INSERT INTO assets
		(id, app_id, asset_type, content, created_at, updated_at) VALUES (?, 'app-1', 'note', 'y', '', '')`,
		inserted[0].ID)
	require.Error(t, err)
	assert.Equal(t, "DB002", transfer.MapError(err).Code)
}

func TestSQLite_ServiceRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	cfg := config.TransferConfig{ImportBatchSize: 7, WriteConcurrency: 3}
	svc := transfer.NewService(s, cfg)

	var in strings.Builder
	in.WriteString(transfer.CSVHeader + "\n")
	for i := range 50 {
		fmt.Fprintf(&in, ",note,item %02d,,\n", i)
	}
	res, err := svc.Import(ctx, strings.NewReader(in.String()), transfer.FormatCSV, transfer.ImportOptions{AppID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Succeeded)
	assert.Empty(t, res.Failures)

	var out strings.Builder
	exp, err := svc.Export(ctx, &out, transfer.FormatNDJSON, transfer.ExportOptions{AppID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, 50, exp.Records)
	assert.Equal(t, 50, strings.Count(out.String(), "\n"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("sqlite:///tmp/x.db")
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/x.db?"))
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_txlock=immediate")
}
