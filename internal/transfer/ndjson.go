package transfer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// ndjsonLine is the decode shape. Pointers distinguish a missing field from
// an empty one.
type ndjsonLine struct {
	AssetType *string `json:"assetType"`
	Content   *string `json:"content"`
}

// ndjsonRecord is the encode shape; field order is the wire order.
type ndjsonRecord struct {
	AssetType string `json:"assetType"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	ID        string `json:"id"`
	UpdatedAt string `json:"updatedAt"`
}

// maxLineBytes bounds a single NDJSON line. JSON escaping can grow content
// considerably, so the bound is a multiple of the entry cap.
func maxLineBytes(l Limits) int {
	return int(min(l.MaxEntryBytes*6+64<<10, l.MaxUploadBytes))
}

// DecodeNDJSON reads newline-delimited JSON objects. Blank lines are dropped
// and rows are numbered 1-based over the remaining lines. Every line is
// decoded independently; a bad line is a row failure.
func DecodeNDJSON(ctx context.Context, r io.Reader, opts DecodeOptions) (Rows, error) {
	opts.Limits = opts.Limits.withDefaults()
	br := bufio.NewReaderSize(NewSanitizingReader(r), 64<<10)
	lineCap := maxLineBytes(opts.Limits)

	return func(yield func(ParsedRow, error) bool) {
		row := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(ParsedRow{}, err)
				return
			}

			line, overlong, err := readLine(br, lineCap)
			if err != nil && !errors.Is(err, io.EOF) {
				yield(ParsedRow{}, err)
				return
			}
			eof := err != nil

			if len(bytes.TrimSpace(line)) > 0 || overlong {
				row++
				var pr ParsedRow
				if overlong {
					pr = failedRow(row, fmt.Sprintf("Line exceeds %d bytes", lineCap))
				} else {
					pr = decodeNDJSONLine(row, line, opts)
				}
				if !yield(pr, nil) {
					return
				}
			}
			if eof {
				return
			}
		}
	}, nil
}

// readLine returns the next line without its terminator. A line longer than
// limit is drained and reported as overlong.
func readLine(br *bufio.Reader, limit int) ([]byte, bool, error) {
	var buf []byte
	overlong := false
	for {
		frag, err := br.ReadSlice('\n')
		if !overlong {
			if len(buf)+len(frag) > limit+1 {
				overlong = true
				buf = nil
			} else {
				buf = append(buf, frag...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(buf, "\r\n"), overlong, err
	}
}

func decodeNDJSONLine(row int, line []byte, opts DecodeOptions) ParsedRow {
	var rec ndjsonLine
	if err := json.Unmarshal(line, &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "" {
				return failedRow(row, "Line is not a JSON object")
			}
			return failedRow(row, fmt.Sprintf("%s must be a string", typeErr.Field))
		}
		return failedRow(row, fmt.Sprintf("Invalid JSON: %v", err))
	}
	if rec.AssetType == nil || strings.TrimSpace(*rec.AssetType) == "" {
		return failedRow(row, MsgMissingAssetType)
	}
	if rec.Content == nil {
		return failedRow(row, MsgMissingContent)
	}
	return normalizeInsert(row, opts, *rec.AssetType, *rec.Content)
}

// StreamNDJSON serializes assets as one compact JSON object per line, one
// chunk per chunkSize records. There is no header.
func StreamNDJSON(assets iter.Seq2[Asset, error], chunkSize int) iter.Seq2[ExportChunk, error] {
	return streamChunks(assets, chunkSize, "", writeNDJSONLine)
}

func writeNDJSONLine(b *strings.Builder, a Asset) error {
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	return enc.Encode(ndjsonRecord{
		AssetType: a.AssetType,
		Content:   a.Content,
		CreatedAt: isoTime(a.CreatedAt),
		ID:        a.ID,
		UpdatedAt: isoTime(a.UpdatedAt),
	})
}
