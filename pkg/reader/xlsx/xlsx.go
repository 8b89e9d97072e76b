// Package xlsx reads .xlsx workbooks through excelize's streaming row
// iterator, keeping memory bounded regardless of sheet size.
//
// The streaming iterator yields rendered cell strings, so cells are
// classified back into tagged values from their rendered form; the .xlsb
// backend, by contrast, sees native cell types on the wire.
package xlsx

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/models"
	"github.com/tabshift/tabshift/pkg/pool"
)

// Workbook is an open .xlsx container.
type Workbook struct {
	f     *excelize.File
	names []string
}

// Open opens the workbook at path.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to open xlsx workbook")
	}
	return &Workbook{
		f:     f,
		names: f.GetSheetList(),
	}, nil
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string { return w.names }

// Sheet opens a streaming cursor over the sheet at the given 0-based index.
func (w *Workbook) Sheet(idx int) (*Cursor, error) {
	if idx < 0 || idx >= len(w.names) {
		return nil, errors.Newf(errors.ErrorTypeSheetNotFound,
			"sheet index %d out of range, workbook has %d sheet(s)", idx, len(w.names))
	}
	rows, err := w.f.Rows(w.names[idx])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to open sheet row stream")
	}
	return &Cursor{rows: rows}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Cursor streams one sheet row at a time.
type Cursor struct {
	rows     *excelize.Rows
	sheetRow int64
}

// NextRow returns the next row or io.EOF at end of sheet.
func (c *Cursor) NextRow() (*models.Row, error) {
	if !c.rows.Next() {
		if err := c.rows.Error(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to advance row stream").
				WithRow(c.sheetRow)
		}
		return nil, io.EOF
	}

	cols, err := c.rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode row").
			WithRow(c.sheetRow)
	}

	row := pool.GetRow()
	row.SheetIndex = c.sheetRow
	for _, raw := range cols {
		row.Cells = append(row.Cells, classify(raw))
	}
	c.sheetRow++
	return row, nil
}

// Close releases the row stream.
func (c *Cursor) Close() error {
	return c.rows.Close()
}
