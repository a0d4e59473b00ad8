package etl

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ── Transforms ─────────────────────────────────────────────
// Pure row → document steps. Each is order preserving and
// looks at one row at a time.

// IDSeparator joins composite id components.
const IDSeparator = "_"

// UpdatedAtField is the system field stamped on every imported document.
const UpdatedAtField = "updatedAt"

var errNotANumber = errors.New("not a number")

// FilterBlankRows drops rows whose every cell is empty after trimming.
func FilterBlankRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.Blank() {
			out = append(out, r)
		}
	}
	return out
}

// DeriveID computes the document id for row under t.
// An empty result means the store must assign a fresh id.
//
// A composite id is used even when every component is blank, which yields
// a key made only of separators. Rows like that collide with each other.
func DeriveID(t Target, row Row) string {
	if len(t.CompositeIDFields) > 0 {
		parts := make([]string, len(t.CompositeIDFields))
		for i, f := range t.CompositeIDFields {
			parts[i] = row.Get(f).Trimmed()
		}
		return strings.Join(parts, IDSeparator)
	}
	if t.IDField != "" {
		return row.Get(t.IDField).Trimmed()
	}
	return ""
}

// ParseNumber converts a trimmed cell to float64. Only plain decimal
// notation is accepted: empty input, hex floats, digit separators,
// NaN and infinities are not numbers.
func ParseNumber(s string) (float64, error) {
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, errNotANumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotANumber
	}
	return f, nil
}

// Mapper turns filtered rows into documents for one target.
type Mapper struct {
	Target Target
	// Strict rejects malformed non-empty numeric cells instead of
	// coercing them to zero.
	Strict bool
	// Format names the source format in strict-mode errors.
	Format string
}

// Coerce builds the document fields for row. Every column is trimmed;
// numeric columns become float64, falling back to 0.
func (m Mapper) Coerce(row Row, updatedAt time.Time) (map[string]any, error) {
	fields := make(map[string]any, len(row.Cells)+1)
	for col, cell := range row.Cells {
		trimmed := cell.Trimmed()
		if !m.Target.IsNumeric(col) {
			fields[col] = trimmed
			continue
		}
		if cell.Kind == CellNumber {
			fields[col] = cell.Number
			continue
		}
		n, err := ParseNumber(trimmed)
		if err != nil && m.Strict && trimmed != "" {
			return nil, &ParseError{Format: m.Format, Line: row.Line, Column: col, Err: err}
		}
		fields[col] = n
	}
	fields[UpdatedAtField] = updatedAt
	return fields, nil
}

// Map derives ids and coerces every row, sharing one updatedAt stamp.
func (m Mapper) Map(rows []Row, updatedAt time.Time) ([]Document, error) {
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		fields, err := m.Coerce(r, updatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: DeriveID(m.Target, r), Fields: fields})
	}
	return docs, nil
}
