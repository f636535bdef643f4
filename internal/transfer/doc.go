// Package transfer moves asset records into and out of CSV, NDJSON, XLSX and
// ZIP archives.
//
// The package holds all domain logic independent of storage and transport.
// The CLI, tests, or any other caller drive it through [Service] or through
// the codec functions directly.
//
// # Decoding
//
// Every codec returns a pull-based [Rows] sequence. Structural problems (an
// unreadable archive or workbook, a missing or invalid manifest) are reported
// eagerly as [*ParseError]. Problems with a single
// record are values in the sequence ([ParsedRow] with a [Failure]) and never
// abort the decode. Stopping the range loop stops decompression and parsing.
//
//	rows, err := transfer.Decode(ctx, r, transfer.FormatZIP, opts)
//	if err != nil {
//	    return err // structural
//	}
//	for row, err := range rows {
//	    ...
//	}
//
// [Partition] splits the rows into accepted records and failures and keeps a
// row map so [Batched] can attribute a failed batch write back to source rows.
//
// # Archive Safety
//
// ZIP entries are decoded strictly in manifest order against a shared
// decompressed-size budget: [Limits.MaxEntryBytes] per entry and
// [Limits.MaxArchiveBytes] in total. Declared sizes are checked before an
// entry is inflated and inflation is cut off at the remaining budget. Entries
// with a contentHash must match it by prefix.
//
// # Encoding
//
// CSV and NDJSON exports stream in chunks of [Limits.ExportChunkSize] records
// ([StreamCSV], [StreamNDJSON]). CSV fields go through [EscapeCSVField] so
// spreadsheet applications never evaluate them as formulas. XLSX and ZIP
// exports are built in memory ([BuildXLSX], [BuildZip]).
//
// # Error Handling
//
// Batch write errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL004: Validation errors (asset type, content)
//   - FILE001-FILE006: File errors (size, header, archive, manifest)
//   - XFR001-XFR003: Transfer errors (busy, cancelled, timeout)
package transfer
