// Package sink delivers export output to its destination: a local file,
// standard output or an S3 object.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/transfer/internal/config"
)

// Object is an output being written. Close publishes it; Abort discards it.
// Calling either after the other is a no-op.
type Object interface {
	io.WriteCloser
	Abort() error
}

// Sink opens named outputs.
type Sink interface {
	Create(ctx context.Context, name, contentType string) (Object, error)
}

// ForTarget resolves an export target into a sink and the object name within
// it. Targets are "-" for standard output, s3://bucket/key, or a file path.
func ForTarget(ctx context.Context, target string, cfg config.StorageConfig) (Sink, string, error) {
	switch {
	case target == "" || target == "-":
		return Stdout{W: os.Stdout}, "-", nil
	case strings.HasPrefix(target, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
		if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
			return nil, "", fmt.Errorf("s3 target must be s3://bucket/key, got %q", target)
		}
		s, err := NewS3(ctx, bucket, cfg)
		if err != nil {
			return nil, "", err
		}
		return s, key, nil
	}
	return File{Dir: filepath.Dir(target)}, filepath.Base(target), nil
}

// Stdout writes to W and never closes it.
type Stdout struct {
	W io.Writer
}

// Create returns W wrapped as an Object.
func (s Stdout) Create(context.Context, string, string) (Object, error) {
	return nopObject{s.W}, nil
}

type nopObject struct{ io.Writer }

func (nopObject) Close() error { return nil }
func (nopObject) Abort() error { return nil }
