package transfer

// streaming.go provides the reader stack uploads are decoded through.
//
// Nothing here buffers a whole upload:
//
//   - LimitedReader: fails with ErrFileTooLarge once a byte budget is spent
//   - CountingReader: tracks raw bytes read for progress reporting
//   - sanitizing: strips a UTF-8 BOM and replaces invalid UTF-8 with U+FFFD
//
// WrapForStreaming applies the first two to a raw upload. The text decoders
// add sanitizing themselves; binary formats must not be sanitized.

import (
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrFileTooLarge is returned once an upload exceeds its byte budget.
var ErrFileTooLarge = errors.New("file exceeds maximum upload size")

// NewSanitizingReader strips a leading UTF-8 BOM and replaces invalid UTF-8
// sequences with the replacement character, on the fly.
func NewSanitizingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// LimitedReader reads at most Max bytes from R. Unlike io.LimitReader it
// reports overrun as ErrFileTooLarge instead of a silent EOF.
type LimitedReader struct {
	R    io.Reader
	Max  int64
	read int64
}

// Read implements io.Reader.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max <= 0 {
		return l.R.Read(p)
	}
	if l.read > l.Max {
		return 0, ErrFileTooLarge
	}
	// Allow one byte past the budget so an exact-size input still sees EOF.
	if remaining := l.Max - l.read + 1; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.R.Read(p)
	l.read += int64(n)
	if l.read > l.Max {
		return n, ErrFileTooLarge
	}
	return n, err
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 {
	return r.read.Load()
}

// WrapForStreaming bounds r to maxBytes and counts the raw bytes read
// through it.
func WrapForStreaming(r io.Reader, maxBytes int64) *CountingReader {
	return NewCountingReader(&LimitedReader{R: r, Max: maxBytes})
}
