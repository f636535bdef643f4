package transfer

import (
	"context"
	"iter"
	"time"
)

// Asset is a stored record as supplied to exports.
type Asset struct {
	ID        string    `json:"id"`
	AppID     string    `json:"appId"`
	UserID    string    `json:"userId,omitempty"`
	AssetType string    `json:"assetType"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssetInsert is the normalized record produced by decoding one source row.
// Generated fields (id, timestamps) are assigned by the Database.
type AssetInsert struct {
	AppID     string `json:"appId"`
	UserID    string `json:"userId,omitempty"`
	AssetType string `json:"assetType"`
	Content   string `json:"content"`
}

// Failure describes one source row that could not be imported.
type Failure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ParsedRow is the outcome of decoding one source row. Exactly one of
// Insert and Failure is set.
type ParsedRow struct {
	Row     int
	Insert  *AssetInsert
	Failure *Failure
}

// OK reports whether the row decoded successfully.
func (r ParsedRow) OK() bool { return r.Failure == nil }

func okRow(row int, ins AssetInsert) ParsedRow {
	return ParsedRow{Row: row, Insert: &ins}
}

func failedRow(row int, msg string) ParsedRow {
	return ParsedRow{Row: row, Failure: &Failure{Row: row, Error: msg}}
}

// Rows is a pull-based sequence of decoded rows. A non-nil error is terminal:
// it reports an I/O failure, an exceeded upload limit, or cancellation, and no
// further rows follow it.
type Rows = iter.Seq2[ParsedRow, error]

// ExportChunk is one unit of already-serialized streaming output.
type ExportChunk struct {
	Data string
	// Records is the number of asset records serialized into Data (0 for a header).
	Records int
}

// Database persists imported batches and supplies records for export.
type Database interface {
	// InsertAssets writes the batch in a single transaction.
	InsertAssets(ctx context.Context, batch []AssetInsert) ([]Asset, error)
	// StreamAssets yields the app's assets matching filters, oldest first.
	StreamAssets(ctx context.Context, appID string, filters Filters) iter.Seq2[Asset, error]
}

// Limits bounds the resources a single transfer may consume.
type Limits struct {
	MaxEntryBytes   int64 // per ZIP member, decompressed
	MaxArchiveBytes int64 // all ZIP members together, decompressed
	MaxUploadBytes  int64 // raw imported file
	ExportChunkSize int
	ImportBatchSize int
}

const (
	DefaultMaxEntryBytes   = 5 << 20
	DefaultMaxArchiveBytes = 100 << 20
	DefaultMaxUploadBytes  = 100 << 20
	DefaultExportChunkSize = 500
	DefaultImportBatchSize = 100
)

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		MaxEntryBytes:   DefaultMaxEntryBytes,
		MaxArchiveBytes: DefaultMaxArchiveBytes,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		ExportChunkSize: DefaultExportChunkSize,
		ImportBatchSize: DefaultImportBatchSize,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxEntryBytes <= 0 {
		l.MaxEntryBytes = d.MaxEntryBytes
	}
	if l.MaxArchiveBytes <= 0 {
		l.MaxArchiveBytes = d.MaxArchiveBytes
	}
	if l.MaxUploadBytes <= 0 {
		l.MaxUploadBytes = d.MaxUploadBytes
	}
	if l.ExportChunkSize <= 0 {
		l.ExportChunkSize = d.ExportChunkSize
	}
	if l.ImportBatchSize <= 0 {
		l.ImportBatchSize = d.ImportBatchSize
	}
	return l
}

// DecodeOptions carries the ownership fields stamped onto every decoded
// record plus the limits applied while decoding.
type DecodeOptions struct {
	AppID  string
	UserID string
	Limits Limits
}

func (o DecodeOptions) insert(assetType, content string) AssetInsert {
	return AssetInsert{
		AppID:     o.AppID,
		UserID:    o.UserID,
		AssetType: assetType,
		Content:   content,
	}
}

// isoTime formats t the way exports and manifests carry timestamps:
// UTC, millisecond precision.
func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
