package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File writes objects under Dir. Output goes to a hidden temp file that is
// renamed into place on Close, so a failed export never leaves a partial file.
type File struct {
	Dir string
}

// Create opens a temp file next to the final path.
func (f File) Create(_ context.Context, name, _ string) (Object, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	dir := f.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &fileObject{File: tmp, final: filepath.Join(dir, name)}, nil
}

type fileObject struct {
	*os.File
	final string
	done  bool
}

func (o *fileObject) Close() error {
	if o.done {
		return nil
	}
	o.done = true

	if err := o.File.Sync(); err != nil {
		o.File.Close()
		os.Remove(o.File.Name())
		return fmt.Errorf("sync %s: %w", o.final, err)
	}
	if err := o.File.Close(); err != nil {
		os.Remove(o.File.Name())
		return fmt.Errorf("close %s: %w", o.final, err)
	}
	if err := os.Rename(o.File.Name(), o.final); err != nil {
		os.Remove(o.File.Name())
		return fmt.Errorf("rename to %s: %w", o.final, err)
	}
	return nil
}

func (o *fileObject) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	return errors.Join(o.File.Close(), os.Remove(o.File.Name()))
}
