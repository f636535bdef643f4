package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// CSVHeader is the fixed header line of CSV exports.
const CSVHeader = "id,assetType,content,createdAt,updatedAt"

// headerIndex maps normalized column names to positions.
type headerIndex map[string]int

func makeHeaderIndex(headers []string) headerIndex {
	idx := make(headerIndex, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func (h headerIndex) lookup(names ...string) (int, bool) {
	for _, n := range names {
		if pos, ok := h[n]; ok {
			return pos, true
		}
	}
	return 0, false
}

// DecodeCSV reads a CSV upload with a header row.
//
// The header is read eagerly. Empty input yields no rows. Data rows are
// numbered from 2 so row numbers match what a spreadsheet shows. A header
// without an assetType (or asset_type) or content column does not abort the
// decode; every data row fails with the reason instead.
func DecodeCSV(ctx context.Context, r io.Reader, opts DecodeOptions) (Rows, error) {
	opts.Limits = opts.Limits.withDefaults()

	cr := newCSVReader(NewSanitizingReader(r))

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return emptyRows, nil
	}
	if err != nil {
		var se *csvSyntaxError
		if errors.As(err, &se) {
			return nil, &ParseError{Message: "invalid CSV header", Err: err}
		}
		return nil, err
	}

	idx := makeHeaderIndex(headers)
	typeCol, hasType := idx.lookup("assettype", "asset_type")
	contentCol, hasContent := idx.lookup("content")

	return func(yield func(ParsedRow, error) bool) {
		for dataIndex := 0; ; dataIndex++ {
			if err := ctx.Err(); err != nil {
				yield(ParsedRow{}, err)
				return
			}

			row := dataIndex + 2
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var se *csvSyntaxError
				if !errors.As(err, &se) {
					yield(ParsedRow{}, err)
					return
				}
				if !yield(failedRow(row, fmt.Sprintf("Malformed CSV row: %v", se.err)), nil) {
					return
				}
				continue
			}

			var pr ParsedRow
			switch {
			case !hasType:
				pr = failedRow(row, MsgMissingAssetType)
			case !hasContent:
				pr = failedRow(row, MsgMissingContentColumn)
			default:
				pr = normalizeInsert(row, opts,
					UnescapeCSVField(cell(record, typeCol)),
					UnescapeCSVField(cell(record, contentCol)),
				)
			}
			if !yield(pr, nil) {
				return
			}
		}
	}, nil
}

func cell(record []string, pos int) string {
	if pos < len(record) {
		return record[pos]
	}
	return ""
}

// StreamCSV serializes assets as CSV. The header is emitted as its own chunk,
// followed by one chunk per chunkSize records.
func StreamCSV(assets iter.Seq2[Asset, error], chunkSize int) iter.Seq2[ExportChunk, error] {
	return streamChunks(assets, chunkSize, CSVHeader+"\n", writeCSVLine)
}

func writeCSVLine(b *strings.Builder, a Asset) error {
	fields := [...]string{a.ID, a.AssetType, a.Content, isoTime(a.CreatedAt), isoTime(a.UpdatedAt)}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeCSVField(f))
	}
	b.WriteByte('\n')
	return nil
}
