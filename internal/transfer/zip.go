package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// MaxManifestBytes bounds the decompressed size of manifest.json.
const MaxManifestBytes = 16 << 20

// DecodeZIP reads an archive with a manifest.json index.
//
// Opening the archive and reading the manifest happen eagerly; failures there
// are *ParseError. Entries are then decoded strictly in manifest order because
// they share one decompressed-size budget. For every entry the declared size
// is checked against MaxEntryBytes and the running total against
// MaxArchiveBytes before anything is decompressed, and decompression itself is
// cut off at whichever budget is smaller, so archive metadata that understates
// sizes cannot force a large inflate.
func DecodeZIP(ctx context.Context, r io.ReaderAt, size int64, opts DecodeOptions) (Rows, error) {
	opts.Limits = opts.Limits.withDefaults()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &ParseError{Message: "not a valid zip archive", Err: err}
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, dup := files[f.Name]; !dup {
			files[f.Name] = f
		}
	}

	mf, ok := files[ManifestName]
	if !ok {
		return nil, &ParseError{Message: "invalid archive", Err: ErrManifestMissing}
	}
	raw, err := readEntry(mf, MaxManifestBytes)
	if err != nil {
		return nil, &ParseError{Message: "cannot read manifest.json", Err: err}
	}
	manifest, err := DecodeManifest(raw)
	if err != nil {
		return nil, err
	}

	return func(yield func(ParsedRow, error) bool) {
		d := zipDecoder{files: files, opts: opts}
		for i, entry := range manifest.Entries {
			if err := ctx.Err(); err != nil {
				yield(ParsedRow{}, err)
				return
			}
			if !yield(d.entry(i+1, entry), nil) {
				return
			}
		}
	}, nil
}

// zipDecoder owns the running decompressed-size total of one decode call.
type zipDecoder struct {
	files map[string]*zip.File
	opts  DecodeOptions
	total int64
}

func (d *zipDecoder) entry(row int, entry ManifestEntry) ParsedRow {
	entryCap := d.opts.Limits.MaxEntryBytes
	globalCap := d.opts.Limits.MaxArchiveBytes

	f, ok := d.files[entry.File]
	if !ok || f.FileInfo().IsDir() {
		return failedRow(row, fmt.Sprintf("File not found in archive: %s", entry.File))
	}

	declared := declaredSize(f, entry)
	if declared > entryCap {
		return failedRow(row, fmt.Sprintf("Entry %s declares %d bytes, exceeding the %d byte per-file limit",
			entry.File, declared, entryCap))
	}
	if d.total+declared > globalCap {
		return failedRow(row, fmt.Sprintf("Entry %s would bring the archive to %d bytes, exceeding the %d byte limit",
			entry.File, d.total+declared, globalCap))
	}

	budget := min(entryCap, globalCap-d.total)
	data, err := readEntry(f, budget)
	if err != nil {
		return failedRow(row, fmt.Sprintf("Decompression failed for %s: %v", entry.File, err))
	}

	if entry.ContentHash != "" {
		actual := ContentHash(data)
		if !hashMatches(actual, entry.ContentHash) {
			return failedRow(row, fmt.Sprintf("Checksum mismatch for %s: actual %s, expected %s",
				entry.File, hashFragment(actual), hashFragment(normalizeHash(entry.ContentHash))))
		}
	}

	d.total += int64(len(data))
	return normalizeInsert(row, d.opts, entry.Type, string(data))
}

// declaredSize takes the larger of the archive header size and the manifest
// size so neither source can understate the entry.
func declaredSize(f *zip.File, entry ManifestEntry) int64 {
	declared := int64(min(f.UncompressedSize64, 1<<62))
	if entry.Size != nil && *entry.Size > declared {
		declared = *entry.Size
	}
	return declared
}

// errEntryTooLarge reports an entry that inflated past its budget.
type errEntryTooLarge struct{ limit int64 }

func (e errEntryTooLarge) Error() string {
	return fmt.Sprintf("decompressed size exceeds %d bytes", e.limit)
}

// readEntry inflates f, reading at most limit bytes.
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errEntryTooLarge{limit: limit}
	}
	return data, nil
}
