// Package models provides the data model shared across the conversion
// pipeline: tagged cell values, rows, row batches, and column schemas.
//
// Cells and rows are transient. A row is owned by whichever batch currently
// holds it and is released once that batch has been encoded; nothing in the
// pipeline retains a row beyond its batch.
package models

import (
	"strconv"
	"time"
)

// CellType tags the value held by a Cell.
type CellType uint8

const (
	// CellEmpty is an absent or blank cell.
	CellEmpty CellType = iota
	// CellBool is a boolean cell.
	CellBool
	// CellInt is an integer cell.
	CellInt
	// CellFloat is a floating-point cell.
	CellFloat
	// CellText is a text cell.
	CellText
	// CellDateTime is a date or datetime cell.
	CellDateTime
	// CellError is a spreadsheet error cell (#VALUE!, #DIV/0!, ...).
	CellError
)

// String returns the lowercase name of the cell type.
func (t CellType) String() string {
	switch t {
	case CellEmpty:
		return "empty"
	case CellBool:
		return "bool"
	case CellInt:
		return "int"
	case CellFloat:
		return "float"
	case CellText:
		return "text"
	case CellDateTime:
		return "datetime"
	case CellError:
		return "error"
	default:
		return "unknown"
	}
}

// Cell is a single tagged value at a row/column position. Only the field
// matching Type is meaningful; the rest are zero.
type Cell struct {
	Type  CellType
	Bool  bool
	Int   int64
	Float float64
	// Text holds text values and, for CellError, the error literal.
	Text string
	Time time.Time
}

// Convenience constructors. Readers produce cells exclusively through these.

// EmptyCell returns the empty cell.
func EmptyCell() Cell { return Cell{Type: CellEmpty} }

// BoolCell returns a boolean cell.
func BoolCell(v bool) Cell { return Cell{Type: CellBool, Bool: v} }

// IntCell returns an integer cell.
func IntCell(v int64) Cell { return Cell{Type: CellInt, Int: v} }

// FloatCell returns a floating-point cell.
func FloatCell(v float64) Cell { return Cell{Type: CellFloat, Float: v} }

// TextCell returns a text cell.
func TextCell(v string) Cell { return Cell{Type: CellText, Text: v} }

// DateTimeCell returns a date/datetime cell.
func DateTimeCell(v time.Time) Cell { return Cell{Type: CellDateTime, Time: v} }

// ErrorCell returns a spreadsheet error cell carrying its literal form.
func ErrorCell(literal string) Cell { return Cell{Type: CellError, Text: literal} }

// IsEmpty reports whether the cell carries no value. Error cells are not
// empty; they carry the error literal.
func (c Cell) IsEmpty() bool { return c.Type == CellEmpty }

// Format renders the cell as its canonical text form: integers without
// exponent, floats in shortest round-trip form, bools as true/false,
// datetimes as RFC 3339, error cells as their literal. Empty cells render
// as the empty string.
func (c Cell) Format() string {
	switch c.Type {
	case CellBool:
		return strconv.FormatBool(c.Bool)
	case CellInt:
		return strconv.FormatInt(c.Int, 10)
	case CellFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case CellText, CellError:
		return c.Text
	case CellDateTime:
		return c.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Row is an ordered sequence of cells, aligned by column index within a
// sheet. Index is the 0-based position of the row in the converted stream
// (after skip-rows and any header row have been consumed); SheetIndex is the
// physical 0-based row number in the sheet, kept for diagnostics.
type Row struct {
	Index      int64
	SheetIndex int64
	Cells      []Cell
}

// Cell returns the cell at the given column, or the empty cell when the row
// is shorter than the schema.
func (r *Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return EmptyCell()
	}
	return r.Cells[col]
}

// RowBatch accumulates up to a fixed number of rows for batch encoding.
// The last batch of a sheet may be shorter; that is not an error.
type RowBatch struct {
	Rows []*Row
}

// NewRowBatch creates a batch with the given capacity.
func NewRowBatch(capacity int) *RowBatch {
	return &RowBatch{Rows: make([]*Row, 0, capacity)}
}

// Append adds a row to the batch.
func (b *RowBatch) Append(r *Row) {
	b.Rows = append(b.Rows, r)
}

// Len returns the number of rows currently in the batch.
func (b *RowBatch) Len() int { return len(b.Rows) }

// Reset clears the batch for reuse without deallocating its backing array.
func (b *RowBatch) Reset() {
	for i := range b.Rows {
		b.Rows[i] = nil
	}
	b.Rows = b.Rows[:0]
}
