package transfer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Compression levels used by BuildZip.
const (
	LevelText   = flate.BestCompression
	LevelBinary = 6
)

// textExtensions compress well and get LevelText.
var textExtensions = map[string]bool{
	"svg": true, "json": true, "html": true, "xml": true, "txt": true, "md": true,
	"css": true, "js": true, "ts": true, "yaml": true, "yml": true,
}

// Artifact is a fully built, non-streamed export.
type Artifact struct {
	Format Format
	Data   []byte
	Count  int
}

// Base64 returns the artifact bytes base64-encoded.
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// ZipProgress is reported once per archive member.
type ZipProgress struct {
	Percent     int
	CurrentFile string
}

// collect drains assets into memory.
func collect(ctx context.Context, assets iter.Seq2[Asset, error]) ([]Asset, error) {
	var out []Asset
	for a, err := range assets {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// BuildZip writes every asset as its own deflated member plus a manifest.json
// index. progress may be nil.
func BuildZip(ctx context.Context, assets iter.Seq2[Asset, error], progress func(ZipProgress)) (*Artifact, error) {
	list, err := collect(ctx, assets)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(ZipProgress) {}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	manifest := Manifest{Version: ManifestVersion, Entries: make([]ManifestEntry, 0, len(list))}
	steps := len(list) + 1

	for i, a := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content := []byte(a.Content)
		hash := ContentHash(content)
		ext := typeExtension(a.AssetType)
		name := fmt.Sprintf("%04d-%s-%s.%s", i+1, sanitizeID(a.ID), hash[:8], ext)

		level := LevelBinary
		if textExtensions[ext] {
			level = LevelText
		}
		if err := writeMember(zw, name, level, a, content); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}

		size := int64(len(content))
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			ID:          a.ID,
			File:        name,
			Type:        a.AssetType,
			Size:        &size,
			ContentHash: hash,
			CreatedAt:   isoTime(a.CreatedAt),
			UpdatedAt:   isoTime(a.UpdatedAt),
		})
		progress(ZipProgress{Percent: (i + 1) * 100 / steps, CurrentFile: name})
	}

	raw, err := EncodeManifest(&manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeMember(zw, ManifestName, LevelText, Asset{}, raw); err != nil {
		return nil, fmt.Errorf("write %s: %w", ManifestName, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	progress(ZipProgress{Percent: 100, CurrentFile: ManifestName})

	return &Artifact{Format: FormatZIP, Data: buf.Bytes(), Count: len(list)}, nil
}

func writeMember(zw *zip.Writer, name string, level int, a Asset, content []byte) error {
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !a.UpdatedAt.IsZero() {
		hdr.Modified = a.UpdatedAt.UTC()
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

const (
	maxIDFragment  = 32
	maxExtFragment = 12
)

// sanitizeID keeps [A-Za-z0-9_-] from id, bounded in length.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() == maxIDFragment {
			break
		}
		if r < 0x80 && (isAlnum(byte(r)) || r == '-' || r == '_') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}

// typeExtension derives a file extension from an asset type such as
// "image/svg+xml" (svg) or "json" (json).
func typeExtension(assetType string) string {
	t := strings.ToLower(assetType)
	if i := strings.LastIndexByte(t, '/'); i >= 0 {
		t = t[i+1:]
	}
	if i := strings.IndexByte(t, '+'); i >= 0 {
		t = t[:i]
	}
	var b strings.Builder
	for i := 0; i < len(t) && b.Len() < maxExtFragment; i++ {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "bin"
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
