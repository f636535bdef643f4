package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrManifestMissing is wrapped by the ParseError returned for a ZIP archive
// without manifest.json.
var ErrManifestMissing = errors.New("manifest.json not found in archive")

// ParseError is a structural failure that aborts a whole decode: a corrupt
// container, a missing manifest or an unusable header. Row is always 0.
type ParseError struct {
	Row     int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

func emptyRows(func(ParsedRow, error) bool) {}

// Decode returns a pull-based row sequence for r in the given format.
//
// Structural problems are reported eagerly as *ParseError. Row problems are
// values in the sequence. Formats that need random access (XLSX, ZIP) read r
// fully, bounded by opts.Limits.MaxUploadBytes.
func Decode(ctx context.Context, r io.Reader, format Format, opts DecodeOptions) (Rows, error) {
	opts.Limits = opts.Limits.withDefaults()

	switch format {
	case FormatCSV:
		return DecodeCSV(ctx, &LimitedReader{R: r, Max: opts.Limits.MaxUploadBytes}, opts)
	case FormatNDJSON:
		return DecodeNDJSON(ctx, &LimitedReader{R: r, Max: opts.Limits.MaxUploadBytes}, opts)
	case FormatXLSX:
		data, err := readAllLimited(r, opts.Limits.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		return DecodeXLSX(ctx, bytes.NewReader(data), opts)
	case FormatZIP:
		data, err := readAllLimited(r, opts.Limits.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		return DecodeZIP(ctx, bytes.NewReader(data), int64(len(data)), opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Parse decodes r completely and returns the rows in source order.
func Parse(ctx context.Context, r io.Reader, format Format, opts DecodeOptions) ([]ParsedRow, error) {
	rows, err := Decode(ctx, r, format, opts)
	if err != nil {
		return nil, err
	}
	var out []ParsedRow
	for row, err := range rows {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func readAllLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(&LimitedReader{R: r, Max: maxBytes})
}
