package transfer

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the sheet name used for exports.
const XLSXSheet = "Assets"

// XLSXHeader lists the export columns.
var XLSXHeader = []any{"ID", "AssetType", "Content", "CreatedAt", "UpdatedAt"}

// DecodeXLSX reads the first worksheet of a workbook. Cell 1 is the asset
// type and cell 2 the content. A first row whose first cell is "assetType"
// is a header and produces no output.
//
// The workbook stays open until the sequence has been consumed.
func DecodeXLSX(ctx context.Context, r io.Reader, opts DecodeOptions) (Rows, error) {
	opts.Limits = opts.Limits.withDefaults()

	f, err := excelize.OpenReader(r, excelize.Options{
		UnzipSizeLimit:    opts.Limits.MaxArchiveBytes,
		UnzipXMLSizeLimit: opts.Limits.MaxArchiveBytes,
	})
	if err != nil {
		return nil, &ParseError{Message: "invalid workbook", Err: err}
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, &ParseError{Message: "workbook has no worksheets"}
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, &ParseError{Message: "invalid workbook", Err: err}
	}

	return func(yield func(ParsedRow, error) bool) {
		defer f.Close()
		defer rows.Close()

		for row := 1; rows.Next(); row++ {
			if err := ctx.Err(); err != nil {
				yield(ParsedRow{}, err)
				return
			}

			cells, err := rows.Columns(excelize.Options{RawCellValue: true})
			if err != nil {
				yield(ParsedRow{}, fmt.Errorf("read row %d: %w", row, err))
				return
			}

			pr := decodeXLSXRow(row, cells, opts)
			if pr.Failure != nil && pr.Failure.Error == MsgHeaderSkipped {
				continue
			}
			if !yield(pr, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(ParsedRow{}, fmt.Errorf("read workbook: %w", err))
		}
	}, nil
}

func decodeXLSXRow(row int, cells []string, opts DecodeOptions) ParsedRow {
	first := strings.TrimSpace(cell(cells, 0))
	if row == 1 && strings.EqualFold(first, "assettype") {
		return failedRow(row, MsgHeaderSkipped)
	}
	if first == "" {
		return failedRow(row, MsgMissingAssetType)
	}
	return normalizeInsert(row, opts, first, cell(cells, 1))
}

// BuildXLSX writes assets into a single-sheet workbook. All values are
// written as string cells.
func BuildXLSX(ctx context.Context, assets iter.Seq2[Asset, error]) (*Artifact, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(XLSXSheet)
	if err != nil {
		return nil, fmt.Errorf("open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", XLSXHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	count := 0
	for a, err := range assets {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count++
		axis, err := excelize.CoordinatesToCellName(1, count+1)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(axis, []any{
			a.ID, a.AssetType, a.Content, isoTime(a.CreatedAt), isoTime(a.UpdatedAt),
		}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", count+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Artifact{Format: FormatXLSX, Data: buf.Bytes(), Count: count}, nil
}
