package transfer

import (
	"iter"
	"strings"
)

// Batch is one bounded unit of work for a transactional write.
// Rows[i] is the source row of Items[i].
type Batch struct {
	Items []AssetInsert
	Rows  []int
}

// Batched splits items into windows of at most size records, carrying the
// source rows from rowMap alongside. A size <= 0 uses DefaultImportBatchSize.
func Batched(items []AssetInsert, rowMap []int, size int) iter.Seq[Batch] {
	if size <= 0 {
		size = DefaultImportBatchSize
	}
	return func(yield func(Batch) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			rows := make([]int, 0, end-start)
			for i := start; i < end; i++ {
				rows = append(rows, rowAt(rowMap, i))
			}
			if !yield(Batch{Items: items[start:end], Rows: rows}) {
				return
			}
		}
	}
}

// streamChunks groups assets into windows of chunkSize records and emits one
// serialized chunk per window. A non-empty header is emitted first as its own
// chunk. Only the current window is ever resident.
func streamChunks(
	assets iter.Seq2[Asset, error],
	chunkSize int,
	header string,
	write func(*strings.Builder, Asset) error,
) iter.Seq2[ExportChunk, error] {
	if chunkSize <= 0 {
		chunkSize = DefaultExportChunkSize
	}
	return func(yield func(ExportChunk, error) bool) {
		if header != "" && !yield(ExportChunk{Data: header}, nil) {
			return
		}

		var b strings.Builder
		n := 0
		for a, err := range assets {
			if err != nil {
				yield(ExportChunk{}, err)
				return
			}
			if err := write(&b, a); err != nil {
				yield(ExportChunk{}, err)
				return
			}
			n++
			if n == chunkSize {
				if !yield(ExportChunk{Data: b.String(), Records: n}, nil) {
					return
				}
				b.Reset()
				n = 0
			}
		}
		if n > 0 {
			yield(ExportChunk{Data: b.String(), Records: n}, nil)
		}
	}
}
