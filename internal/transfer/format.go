package transfer

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
)

// Format identifies a wire format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
	FormatXLSX   Format = "xlsx"
	FormatZIP    Format = "zip"
)

// ErrUnsupportedFormat is returned for an unknown format name or extension.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatNDJSON, FormatXLSX, FormatZIP}

// MIMEType returns the fixed content type of the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatNDJSON:
		return "application/x-ndjson"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatZIP:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension used for exports, without a dot.
func (f Format) Extension() string {
	return string(f)
}

// streamEncoders holds the formats exported chunk by chunk.
var streamEncoders = map[Format]func(iter.Seq2[Asset, error], int) iter.Seq2[ExportChunk, error]{
	FormatCSV:    StreamCSV,
	FormatNDJSON: StreamNDJSON,
}

// Streaming reports whether the format is exported chunk by chunk.
func (f Format) Streaming() bool {
	_, ok := streamEncoders[f]
	return ok
}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	case "xlsx":
		return FormatXLSX, nil
	case "zip":
		return FormatZIP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename infers the format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return ParseFormat(ext)
}
