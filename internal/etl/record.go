package etl

import (
	"strconv"
	"strings"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All sources emit Rows, the mapper turns Rows into Documents,
// and destinations consume Documents.

// CellKind tags the dynamic type of a raw cell.
type CellKind int

const (
	CellAbsent CellKind = iota
	CellString
	CellNumber
	CellBool
)

// Cell is a single raw value as read from the source file.
// CSV only ever yields strings; spreadsheets can yield numbers and booleans.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
}

func StringCell(s string) Cell { return Cell{Kind: CellString, Text: s} }
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }
func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// String renders the cell the way it would appear in a text export.
// Absent cells render as the empty string.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// Trimmed is String with surrounding whitespace removed.
func (c Cell) Trimmed() string {
	return strings.TrimSpace(c.String())
}

// Row is a single record read from the source, keyed by header name.
// Line is the 1-based line (CSV) or row number (spreadsheet) it came from.
type Row struct {
	Line  int
	Cells map[string]Cell
}

// Get returns the cell for column, or an absent cell.
func (r Row) Get(column string) Cell {
	return r.Cells[column]
}

// Blank reports whether every cell of the row is empty after trimming.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if c.Trimmed() != "" {
			return false
		}
	}
	return true
}

// Document is a coerced record ready to be written.
// An empty ID means the destination assigns a fresh identifier.
type Document struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}
