package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"logistria/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads rows from delimited text. The first record is the header.

type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

const utf8BOM = "\ufeff"

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Format:     "csv",
		Label:      "CSV File",
		Extensions: []string{"csv"},
	}
}

func (s *csvFileSource) Read(ctx context.Context, r io.Reader) ([]etl.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are allowed
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, csvParseError(err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}

	var rows []etl.Row
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvParseError(err)
		}
		line, _ := reader.FieldPos(0)

		cells := make(map[string]etl.Cell, len(headers))
		for j, h := range headers {
			if h == "" || j >= len(record) {
				continue
			}
			cells[h] = etl.StringCell(record[j])
		}
		rows = append(rows, etl.Row{Line: line, Cells: cells})
	}

	return rows, nil
}

func csvParseError(err error) error {
	pe := &etl.ParseError{Format: "csv", Err: err}
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		pe.Line = csvErr.Line
		pe.Err = csvErr.Err
	}
	return pe
}
