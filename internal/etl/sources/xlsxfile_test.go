package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"logistria/internal/etl"
)

func TestTypedCell(t *testing.T) {
	cases := []struct {
		name string
		typ  excelize.CellType
		raw  string
		want etl.Cell
	}{
		{"number", excelize.CellTypeNumber, "007", etl.NumberCell(7)},
		{"unset numeric formula", excelize.CellTypeUnset, "12.5", etl.NumberCell(12.5)},
		{"date serial", excelize.CellTypeDate, "45000", etl.NumberCell(45000)},
		{"iso date", excelize.CellTypeDate, "2024-01-02T00:00:00Z", etl.StringCell("2024-01-02T00:00:00Z")},
		{"string formula keeps zeros", excelize.CellTypeFormula, "007", etl.StringCell("007")},
		{"shared string", excelize.CellTypeSharedString, "42", etl.StringCell("42")},
		{"inline string", excelize.CellTypeInlineString, "1e3", etl.StringCell("1e3")},
		{"error", excelize.CellTypeError, "#DIV/0!", etl.StringCell("#DIV/0!")},
		{"bool", excelize.CellTypeBool, "1", etl.BoolCell(true)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, typedCell(tc.typ, tc.raw))
		})
	}
}
