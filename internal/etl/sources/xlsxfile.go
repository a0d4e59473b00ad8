package sources

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"logistria/internal/etl"
)

// ── Spreadsheet Source ──────────────────────────────────────
// Reads the first sheet of a workbook. The first row is the header.
// Cells keep their spreadsheet type (number, boolean, text).

type xlsxFileSource struct{}

func init() { etl.RegisterSource(&xlsxFileSource{}) }

func (s *xlsxFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Format:     "xlsx",
		Label:      "Excel Workbook",
		Extensions: []string{"xlsx", "xlsm"},
	}
}

func (s *xlsxFileSource) Read(ctx context.Context, r io.Reader) ([]etl.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &etl.ParseError{Format: "xlsx", Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &etl.ParseError{Format: "xlsx", Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	if len(grid) == 0 {
		return nil, nil
	}

	headers := grid[0]
	rows := make([]etl.Row, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record := grid[i]
		cells := make(map[string]etl.Cell, len(headers))
		for j, h := range headers {
			if h == "" || j >= len(record) || record[j] == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, &etl.ParseError{Format: "xlsx", Line: i + 1, Err: err}
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, &etl.ParseError{Format: "xlsx", Line: i + 1, Column: h, Err: err}
			}
			cells[h] = typedCell(typ, record[j])
		}
		rows = append(rows, etl.Row{Line: i + 1, Cells: cells})
	}

	return rows, nil
}

// typedCell converts a raw cell value using its declared spreadsheet type.
func typedCell(typ excelize.CellType, raw string) etl.Cell {
	switch typ {
	case excelize.CellTypeBool:
		return etl.BoolCell(raw == "1" || raw == "TRUE" || raw == "true")
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate:
		// Unset covers numeric formula results and date serials.
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return etl.NumberCell(f)
		}
		return etl.StringCell(raw)
	default:
		// Text, errors and string formula results.
		return etl.StringCell(raw)
	}
}
