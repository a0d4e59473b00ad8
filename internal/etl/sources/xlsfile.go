package sources

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/ole2"
	"github.com/extrame/xls"

	"logistria/internal/etl"
)

// ── Legacy Excel Source ─────────────────────────────────────
// Reads the first sheet of a BIFF (Excel 97-2003) workbook. The first
// row is the header. The reader reports every cell as text; numeric
// coercion happens in the field transforms.

type xlsFileSource struct{}

func init() { etl.RegisterSource(&xlsFileSource{}) }

const (
	// BIFF8 allows at most 256 columns.
	xlsMaxCols = 256
	// Formula cells are not evaluated by the reader.
	xlsFormulaPlaceholder = "FormulaCol"
)

func (s *xlsFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Format:     "xls",
		Label:      "Excel 97-2003 Workbook",
		Extensions: []string{"xls"},
	}
}

func (s *xlsFileSource) Read(ctx context.Context, r io.Reader) (rows []etl.Row, err error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &etl.ParseError{Format: "xls", Err: err}
	}
	if err := checkContainer(body); err != nil {
		return nil, &etl.ParseError{Format: "xls", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, &etl.ParseError{Format: "xls", Err: fmt.Errorf("corrupt workbook: %v", p)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(body), "utf-8")
	if err != nil {
		return nil, &etl.ParseError{Format: "xls", Err: fmt.Errorf("open workbook: %w", err)}
	}
	if wb == nil {
		return nil, &etl.ParseError{Format: "xls", Err: errors.New("no workbook stream")}
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	header := sheetRow(sheet, 0)
	if header == nil {
		return nil, nil
	}
	headers := make([]string, 0, xlsMaxCols)
	for j := 0; j < xlsMaxCols; j++ {
		headers = append(headers, strings.TrimSpace(header.Col(j)))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}

	rows = make([]etl.Row, 0, int(sheet.MaxRow))
	for i := 1; i <= int(sheet.MaxRow); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		cells := make(map[string]etl.Cell, len(headers))
		if row := sheetRow(sheet, i); row != nil {
			for j, h := range headers {
				v := row.Col(j)
				if h == "" || v == "" || v == xlsFormulaPlaceholder {
					continue
				}
				cells[h] = etl.StringCell(v)
			}
		}
		rows = append(rows, etl.Row{Line: i + 1, Cells: cells})
	}
	return rows, nil
}

// sheetRow returns nil for rows the sheet has no records for.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// checkContainer walks the compound-file chains the reader follows and
// rejects files whose sector links point outside the allocation table.
func checkContainer(body []byte) error {
	if len(body) < 512 {
		return errors.New("not an excel file")
	}
	doc, err := ole2.Open(bytes.NewReader(body), "utf-8")
	if err != nil {
		return err
	}
	dirStart := binary.LittleEndian.Uint32(body[48:52])
	cutoff := binary.LittleEndian.Uint32(body[56:60])
	if err := checkChain(doc.SecID, dirStart); err != nil {
		return fmt.Errorf("directory: %w", err)
	}

	dir, err := doc.ListDir()
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	var book, root *ole2.File
	for _, f := range dir {
		switch f.Name() {
		case "Workbook", "Book":
			book = f
		case "Root Entry":
			root = f
		}
	}
	if book == nil {
		return errors.New("no workbook stream")
	}
	if book.Size >= cutoff {
		return checkChain(doc.SecID, book.Sstart)
	}
	if root == nil {
		return errors.New("no root entry")
	}
	if err := checkChain(doc.SecID, root.Sstart); err != nil {
		return fmt.Errorf("short stream container: %w", err)
	}
	return checkChain(doc.SSecID, book.Sstart)
}

func checkChain(sat []uint32, sid uint32) error {
	for steps := 0; sid != ole2.ENDOFCHAIN; steps++ {
		if int(sid) >= len(sat) {
			return fmt.Errorf("sector %d outside allocation table", sid)
		}
		if steps > len(sat) {
			return errors.New("sector chain loops")
		}
		sid = sat[sid]
	}
	return nil
}
