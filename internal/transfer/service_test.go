package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/transfer/internal/config"
)

func testConfig() config.TransferConfig {
	return config.TransferConfig{
		MaxEntryBytes:    DefaultMaxEntryBytes,
		MaxArchiveBytes:  DefaultMaxArchiveBytes,
		MaxUploadBytes:   DefaultMaxUploadBytes,
		ExportChunkSize:  2,
		ImportBatchSize:  3,
		WriteConcurrency: 2,
		MaxConcurrent:    2,
		MaxWaitTime:      time.Second,
	}
}

// recorder collects progress events.
type recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recorder) record(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.Phase {
			out = append(out, e.Phase)
		}
	}
	return out
}

func (r *recorder) last() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func csvOf(contents ...string) string {
	var b strings.Builder
	b.WriteString(CSVHeader + "\n")
	for i, c := range contents {
		fmt.Fprintf(&b, "x%d,note,%s,,\n", i, c)
	}
	return b.String()
}

func TestService_Import(t *testing.T) {
	db := &memDB{}
	rec := &recorder{}
	svc := NewService(db, testConfig(), WithProgress(rec.record))

	input := csvOf("c1", "c2", "c3", "c4") + ",,missing type,,\n"
	res, err := svc.Import(context.Background(), strings.NewReader(input), FormatCSV, ImportOptions{
		AppID:    "app-1",
		UserID:   "user-1",
		FileName: "assets.csv",
		Size:     int64(len(input)),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, []Failure{{Row: 6, Error: MsgMissingAssetType}}, res.Failures)
	assert.NotEmpty(t, res.TransferID)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, db.contents())
	assert.Equal(t, 2, db.batches)

	assert.Equal(t, []Phase{PhaseStarting, PhaseParsing, PhaseWriting, PhaseComplete}, rec.phases())
	last := rec.last()
	assert.Equal(t, 100, last.Percent())
	assert.Equal(t, 4, last.Succeeded)
	assert.Equal(t, 1, last.Failed)
}

func TestService_Import_FailedBatchAttributedToEveryRow(t *testing.T) {
	db := &memDB{
		failBatch: func(batch []AssetInsert) error {
			for _, ins := range batch {
				if ins.Content == "c5" {
					return errors.New(`ERROR: duplicate key value violates unique constraint "assets_pkey"`)
				}
			}
			return nil
		},
	}
	svc := NewService(db, testConfig())

	contents := make([]string, 10)
	for i := range contents {
		contents[i] = fmt.Sprintf("c%d", i+1)
	}
	res, err := svc.Import(context.Background(), strings.NewReader(csvOf(contents...)), FormatCSV, ImportOptions{AppID: "app-1"})
	require.NoError(t, err)

	// Batches of three: c4..c6 sit on source rows 5, 6 and 7.
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 7, res.Succeeded)
	require.Len(t, res.Failures, 3)
	for i, f := range res.Failures {
		assert.Equal(t, 5+i, f.Row)
		assert.Contains(t, f.Error, "(Code: DB001)")
		assert.NotContains(t, f.Error, "assets_pkey")
	}
	assert.NotContains(t, db.contents(), "c5")
	assert.Equal(t, 4, db.batches)
}

func TestService_Import_ParseErrorAborts(t *testing.T) {
	db := &memDB{}
	rec := &recorder{}
	svc := NewService(db, testConfig(), WithProgress(rec.record))

	_, err := svc.Import(context.Background(), strings.NewReader("assetType,\"content\n"), FormatCSV, ImportOptions{AppID: "app-1"})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, db.batches)

	last := rec.last()
	assert.Equal(t, PhaseFailed, last.Phase)
	assert.Contains(t, last.Error, "invalid CSV header")
}

func TestService_Import_MissingColumnsAreRowFailures(t *testing.T) {
	db := &memDB{}
	svc := NewService(db, testConfig())

	res, err := svc.Import(context.Background(), strings.NewReader("id,name\n1,x\n2,y\n"), FormatCSV, ImportOptions{AppID: "app-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, []Failure{{Row: 2, Error: MsgMissingAssetType}, {Row: 3, Error: MsgMissingAssetType}}, res.Failures)
	assert.Equal(t, 0, db.batches)
}

func TestService_Import_FileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	svc := NewService(&memDB{}, cfg)

	input := csvOf(strings.Repeat("x", 100))
	_, err := svc.Import(context.Background(), strings.NewReader(input), FormatCSV, ImportOptions{AppID: "app-1"})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestService_Import_Cancelled(t *testing.T) {
	svc := NewService(&memDB{}, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Import(ctx, strings.NewReader(csvOf("c1")), FormatCSV, ImportOptions{AppID: "app-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Import_TooManyTransfers(t *testing.T) {
	limiter := NewLimiter(1, 50*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	svc := NewService(&memDB{}, testConfig(), WithLimiter(limiter))
	_, err := svc.Import(context.Background(), strings.NewReader(csvOf("c1")), FormatCSV, ImportOptions{AppID: "app-1"})
	assert.ErrorIs(t, err, ErrTooManyTransfers)
}

func TestService_Import_ReportsParseProgress(t *testing.T) {
	rec := &recorder{}
	svc := NewService(&memDB{}, testConfig(), WithProgress(rec.record))

	// Large enough that the decoder's read buffer cannot hold it all.
	pad := strings.Repeat("x", 100)
	contents := make([]string, 2500)
	for i := range contents {
		contents[i] = fmt.Sprintf("c%d-%s", i, pad)
	}
	input := csvOf(contents...)
	_, err := svc.Import(context.Background(), strings.NewReader(input), FormatCSV, ImportOptions{
		AppID: "app-1",
		Size:  int64(len(input)),
	})
	require.NoError(t, err)

	var read []int64
	for _, e := range rec.events {
		if e.Phase == PhaseParsing && e.BytesRead > 0 {
			read = append(read, e.BytesRead)
		}
	}
	require.Len(t, read, 2)
	assert.Less(t, read[0], read[1])
	assert.LessOrEqual(t, read[1], int64(len(input)))
}

func seededDB() *memDB {
	other := sampleAssets()[0]
	other.ID = "foreign"
	other.AppID = "app-2"
	return &memDB{assets: append(sampleAssets(), other)}
}

func TestService_Export_CSVMatchesGolden(t *testing.T) {
	svc := NewService(seededDB(), testConfig())

	var out bytes.Buffer
	res, err := svc.Export(context.Background(), &out, FormatCSV, ExportOptions{AppID: "app-1"})
	require.NoError(t, err)

	want, err := os.ReadFile("testdata/golden/export_csv.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), out.String())
	assert.Equal(t, 5, res.Records)
	assert.EqualValues(t, out.Len(), res.Bytes)
}

func TestService_Export_NDJSONFiltered(t *testing.T) {
	rec := &recorder{}
	svc := NewService(seededDB(), testConfig(), WithProgress(rec.record))

	after := ts("2024-01-03T00:00:00Z")
	before := ts("2024-01-06T00:00:00Z")
	var out bytes.Buffer
	res, err := svc.Export(context.Background(), &out, FormatNDJSON, ExportOptions{
		AppID:   "app-1",
		Filters: Filters{After: &after, Before: &before},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)

	rows, err := Parse(context.Background(), &out, FormatNDJSON, testOpts())
	require.NoError(t, err)
	var got []string
	for _, r := range rows {
		require.True(t, r.OK())
		got = append(got, r.Insert.AssetType)
	}
	assert.Equal(t, []string{"formula", "application/json", "note"}, got)
	assert.Equal(t, PhaseComplete, rec.last().Phase)
}

func TestService_Export_ZIPRoundTrip(t *testing.T) {
	rec := &recorder{}
	svc := NewService(seededDB(), testConfig(), WithProgress(rec.record))

	var out bytes.Buffer
	res, err := svc.Export(context.Background(), &out, FormatZIP, ExportOptions{AppID: "app-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Records)

	target := &memDB{}
	imp := NewService(target, testConfig())
	ires, err := imp.Import(context.Background(), bytes.NewReader(out.Bytes()), FormatZIP, ImportOptions{AppID: "app-9"})
	require.NoError(t, err)
	assert.Equal(t, 5, ires.Succeeded)
	assert.Empty(t, ires.Failures)

	var want []string
	for _, a := range sampleAssets() {
		want = append(want, a.Content)
	}
	slices.Sort(want)
	assert.Equal(t, want, target.contents())

	var files []string
	for _, e := range rec.events {
		if e.CurrentFile != "" {
			files = append(files, e.CurrentFile)
		}
	}
	require.NotEmpty(t, files)
	assert.Equal(t, ManifestName, files[len(files)-1])
	assert.Equal(t, PhaseArchiving, rec.phases()[1])
}

func TestService_Export_XLSX(t *testing.T) {
	svc := NewService(seededDB(), testConfig())

	var out bytes.Buffer
	res, err := svc.Export(context.Background(), &out, FormatXLSX, ExportOptions{
		AppID:   "app-1",
		Filters: Filters{IDs: []string{"a2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	f, err := excelize.OpenReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(XLSXSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a2", "formula", "=SUM(A1:A2)"}, rows[1][:3])
}

func TestService_Export_UnsupportedFormat(t *testing.T) {
	rec := &recorder{}
	svc := NewService(seededDB(), testConfig(), WithProgress(rec.record))

	_, err := svc.Export(context.Background(), &bytes.Buffer{}, Format("xls"), ExportOptions{AppID: "app-1"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, rec.last().Error, "FILE006")
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "assets-app-1-20240506T070809Z.ndjson", ExportFileName("App-1", FormatNDJSON, now))
}
