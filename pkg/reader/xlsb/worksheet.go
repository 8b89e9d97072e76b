package xlsb

import (
	"io"

	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/models"
	"github.com/tabshift/tabshift/pkg/pool"
)

// errorLiterals maps BIFF12 error codes to their display literals.
var errorLiterals = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
}

func errorLiteral(code byte) string {
	if lit, ok := errorLiterals[code]; ok {
		return lit
	}
	return "#UNKNOWN!"
}

// maxColumns is the sheet column limit (column XFD). A larger index on the
// wire is corruption, not a wide row.
const maxColumns = 16384

// Cursor streams one worksheet part row by row. The wire groups cells under
// BrtRowHdr records; rows absent from the stream are emitted as empty rows
// so physical row numbering is preserved.
type Cursor struct {
	wb *Workbook
	rc io.ReadCloser
	rs *recordStream

	// nextRow is the next physical row index to emit; hdrRow is the row
	// index of the buffered row header, or -1 when none is pending.
	nextRow int64
	hdrRow  int64
	started bool
	done    bool

	cells []models.Cell
}

func newCursor(wb *Workbook, rc io.ReadCloser) *Cursor {
	return &Cursor{
		wb:     wb,
		rc:     rc,
		rs:     newRecordStream(rc),
		hdrRow: -1,
	}
}

// NextRow returns the next row or io.EOF at end of sheet.
func (c *Cursor) NextRow() (*models.Row, error) {
	if c.done {
		return nil, io.EOF
	}
	if !c.started {
		c.started = true
		if err := c.advanceHeader(); err != nil {
			return nil, err
		}
	}
	if c.hdrRow < 0 {
		c.done = true
		return nil, io.EOF
	}

	// Rows the wire skipped are materialized as empty.
	if c.nextRow < c.hdrRow {
		row := pool.GetRow()
		row.SheetIndex = c.nextRow
		c.nextRow++
		return row, nil
	}

	sheetRow := c.hdrRow
	if err := c.collectCells(); err != nil {
		return nil, err
	}

	row := pool.GetRow()
	row.SheetIndex = sheetRow
	row.Cells = append(row.Cells, c.cells...)
	c.nextRow = sheetRow + 1
	return row, nil
}

// advanceHeader scans forward to the first row header, or marks the sheet
// exhausted.
func (c *Cursor) advanceHeader() error {
	for {
		id, payload, err := c.rs.Next()
		if err == io.EOF {
			c.hdrRow = -1
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to read worksheet stream")
		}
		switch id {
		case recRowHdr:
			buf := recordBuf{data: payload}
			r, err := buf.u32()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode row header")
			}
			c.hdrRow = int64(r)
			return nil
		case recEndSheetData, recEndSheet:
			c.hdrRow = -1
			return nil
		}
	}
}

// collectCells decodes the cell records of the current row, up to the next
// row header or the end of the sheet data, leaving the cells in c.cells.
func (c *Cursor) collectCells() error {
	c.cells = c.cells[:0]
	row := c.hdrRow

	for {
		id, payload, err := c.rs.Next()
		if err == io.EOF {
			c.hdrRow = -1
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to read worksheet stream").
				WithRow(row)
		}

		switch id {
		case recRowHdr:
			buf := recordBuf{data: payload}
			r, err := buf.u32()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode row header").
					WithRow(row)
			}
			c.hdrRow = int64(r)
			return nil
		case recEndSheetData, recEndSheet:
			c.hdrRow = -1
			return nil
		case recCellBlank, recCellRk, recCellError, recCellBool, recCellReal,
			recCellSt, recCellIsst, recFmlaString, recFmlaNum, recFmlaBool, recFmlaError:
			col, cell, err := c.decodeCell(id, payload)
			if err != nil {
				var e *errors.Error
				if errors.As(err, &e) {
					return e.WithRow(row)
				}
				return err
			}
			c.placeCell(col, cell)
		}
	}
}

// placeCell grows the row to the absolute column index, padding gaps with
// empty cells.
func (c *Cursor) placeCell(col int, cell models.Cell) {
	for len(c.cells) <= col {
		c.cells = append(c.cells, models.EmptyCell())
	}
	c.cells[col] = cell
}

// decodeCell decodes one cell record. Every cell payload starts with the
// column index and a style reference; formula cells carry their cached value
// first, so the trailing formula bytes are simply left unread.
func (c *Cursor) decodeCell(id uint16, payload []byte) (int, models.Cell, error) {
	buf := recordBuf{data: payload}
	col, err := buf.u32()
	if err != nil {
		return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode cell column")
	}
	if col >= maxColumns {
		return 0, models.Cell{}, errors.Newf(errors.ErrorTypeCorruptData,
			"cell column index %d exceeds the sheet column limit %d", col, maxColumns)
	}
	styleRef, err := buf.u32()
	if err != nil {
		return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode cell style")
	}
	style := styleRef & 0xFFFFFF

	switch id {
	case recCellBlank:
		return int(col), models.EmptyCell(), nil

	case recCellRk:
		raw, err := buf.u32()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode RK value").
				WithColumn(int(col))
		}
		isInt, i, f := decodeRK(raw)
		if c.styleIsDate(style) {
			serial := f
			if isInt {
				serial = float64(i)
			}
			cell, err := c.dateCell(serial, int(col))
			return int(col), cell, err
		}
		if isInt {
			return int(col), models.IntCell(i), nil
		}
		return int(col), models.FloatCell(f), nil

	case recCellError, recFmlaError:
		code, err := buf.u8()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode error cell").
				WithColumn(int(col))
		}
		return int(col), models.ErrorCell(errorLiteral(code)), nil

	case recCellBool, recFmlaBool:
		v, err := buf.u8()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode bool cell").
				WithColumn(int(col))
		}
		return int(col), models.BoolCell(v != 0), nil

	case recCellReal, recFmlaNum:
		v, err := buf.f64()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode numeric cell").
				WithColumn(int(col))
		}
		if c.styleIsDate(style) {
			cell, err := c.dateCell(v, int(col))
			return int(col), cell, err
		}
		return int(col), models.FloatCell(v), nil

	case recCellSt, recFmlaString:
		s, err := buf.xlString()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode inline string cell").
				WithColumn(int(col))
		}
		return int(col), models.TextCell(s), nil

	case recCellIsst:
		idx, err := buf.u32()
		if err != nil {
			return 0, models.Cell{}, errors.Wrap(err, errors.ErrorTypeCorruptData, "failed to decode shared string cell").
				WithColumn(int(col))
		}
		if int(idx) >= len(c.wb.shared) {
			return 0, models.Cell{}, errors.Newf(errors.ErrorTypeCorruptData,
				"shared string index %d out of range, table has %d entries", idx, len(c.wb.shared)).
				WithColumn(int(col))
		}
		return int(col), models.TextCell(c.wb.shared[idx]), nil
	}

	return int(col), models.EmptyCell(), nil
}

func (c *Cursor) styleIsDate(style uint32) bool {
	return int(style) < len(c.wb.xfIsDate) && c.wb.xfIsDate[style]
}

func (c *Cursor) dateCell(serial float64, col int) (models.Cell, error) {
	t, err := convertSerial(serial, c.wb.date1904)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			return models.Cell{}, e.WithColumn(col)
		}
		return models.Cell{}, err
	}
	return models.DateTimeCell(t), nil
}

// Close releases the worksheet part stream.
func (c *Cursor) Close() error {
	return c.rc.Close()
}
