package transfer

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

// sampleAssets covers plain text, a formula, embedded quotes and commas, a
// multi-line value and a leading minus sign.
func sampleAssets() []Asset {
	mk := func(id, typ, content, at string) Asset {
		t := ts(at)
		return Asset{ID: id, AppID: "app-1", AssetType: typ, Content: content, CreatedAt: t, UpdatedAt: t}
	}
	return []Asset{
		mk("a1", "text/plain", "hello", "2024-01-02T03:04:05.006Z"),
		mk("a2", "formula", "=SUM(A1:A2)", "2024-01-03T00:00:00Z"),
		mk("a3", "application/json", `{"k":"v, w"}`, "2024-01-04T12:30:00Z"),
		mk("a4", "note", "line1\nline2", "2024-01-05T08:15:30.25Z"),
		mk("a5", "number", "-1", "2024-01-06T23:59:59.999Z"),
	}
}

func seqOf(assets []Asset) iter.Seq2[Asset, error] {
	return func(yield func(Asset, error) bool) {
		for _, a := range assets {
			if !yield(a, nil) {
				return
			}
		}
	}
}

func manyAssets(n int) []Asset {
	base := ts("2024-03-01T00:00:00Z")
	out := make([]Asset, n)
	for i := range out {
		t := base.Add(time.Duration(i) * time.Second)
		out[i] = Asset{
			ID:        fmt.Sprintf("id-%04d", i),
			AppID:     "app-1",
			AssetType: "text/plain",
			Content:   fmt.Sprintf("content %d", i),
			CreatedAt: t,
			UpdatedAt: t,
		}
	}
	return out
}

// memDB is an in-memory Database. failBatch, when set, is consulted for every
// InsertAssets call and may reject the batch.
type memDB struct {
	mu        sync.Mutex
	assets    []Asset
	batches   int
	failBatch func(batch []AssetInsert) error
	now       time.Time
}

func (m *memDB) InsertAssets(ctx context.Context, batch []AssetInsert) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches++
	if m.failBatch != nil {
		if err := m.failBatch(batch); err != nil {
			return nil, err
		}
	}
	if m.now.IsZero() {
		m.now = ts("2024-06-01T00:00:00Z")
	}
	out := make([]Asset, 0, len(batch))
	for _, ins := range batch {
		m.now = m.now.Add(time.Millisecond)
		a := Asset{
			ID:        uuid.NewString(),
			AppID:     ins.AppID,
			UserID:    ins.UserID,
			AssetType: ins.AssetType,
			Content:   ins.Content,
			CreatedAt: m.now,
			UpdatedAt: m.now,
		}
		out = append(out, a)
	}
	m.assets = append(m.assets, out...)
	return out, nil
}

func (m *memDB) StreamAssets(ctx context.Context, appID string, filters Filters) iter.Seq2[Asset, error] {
	return func(yield func(Asset, error) bool) {
		m.mu.Lock()
		snapshot := slices.Clone(m.assets)
		m.mu.Unlock()

		for _, a := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(Asset{}, err)
				return
			}
			if a.AppID != appID || !filters.Match(a) {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}

func (m *memDB) contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.assets))
	for i, a := range m.assets {
		out[i] = a.Content
	}
	slices.Sort(out)
	return out
}

func testOpts() DecodeOptions {
	return DecodeOptions{AppID: "app-1", UserID: "user-1", Limits: DefaultLimits()}
}

// collectRows drains rows, failing on a terminal error.
func collectRows(rows Rows) ([]ParsedRow, error) {
	var out []ParsedRow
	for r, err := range rows {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}
