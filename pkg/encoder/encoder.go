// Package encoder turns row batches into Arrow record batches under a fixed
// schema. It performs value coercion only; all file I/O lives in pkg/writer.
package encoder

import (
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/logger"
	"github.com/tabshift/tabshift/pkg/models"
)

// warnLimit caps the individually logged coercion warnings; past it only the
// aggregate counter grows.
const warnLimit = 10

// Options control the encoder's failure policy.
type Options struct {
	// Strict turns every coercion failure into an error instead of a null.
	Strict bool
}

// Encoder accumulates rows into an Arrow record builder, coercing each cell
// to its column's resolved type.
//
// In lenient mode a cell that cannot be coerced becomes null and is counted;
// the first few are logged with their row, column and raw value. In strict
// mode the first such cell aborts the conversion.
type Encoder struct {
	schema      *models.Schema
	arrowSchema *arrow.Schema
	builder     *array.RecordBuilder
	opts        Options
	log         *zap.Logger

	rows      int
	coercions int64
	warned    int
}

// New creates an encoder for the given resolved schema.
func New(s *models.Schema, opts Options) *Encoder {
	fields := make([]arrow.Field, s.Width())
	for i, col := range s.Columns {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     arrowType(col.Type),
			Nullable: col.Nullable,
		}
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	return &Encoder{
		schema:      s,
		arrowSchema: arrowSchema,
		builder:     array.NewRecordBuilder(memory.NewGoAllocator(), arrowSchema),
		opts:        opts,
		log:         logger.Get(),
	}
}

// arrowType maps a resolved column type onto its Arrow physical type.
func arrowType(t models.ColumnType) arrow.DataType {
	switch t {
	case models.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case models.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case models.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case models.TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema returns the Arrow schema the encoder produces records under.
func (e *Encoder) ArrowSchema() *arrow.Schema { return e.arrowSchema }

// Len returns the number of rows buffered since the last Flush.
func (e *Encoder) Len() int { return e.rows }

// Coercions returns the total number of cells nulled or dropped so far.
func (e *Encoder) Coercions() int64 { return e.coercions }

// Push appends one row. Rows narrower than the schema are padded with nulls;
// rows wider than the schema fail in strict mode and drop the excess cells in
// lenient mode.
func (e *Encoder) Push(row *models.Row) error {
	width := e.schema.Width()
	if len(row.Cells) > width {
		if e.opts.Strict {
			return errors.Newf(errors.ErrorTypeCorruptData,
				"row has %d cells but the schema has %d columns", len(row.Cells), width).
				WithRow(row.Index)
		}
		e.countCoercion(row.Index, width, "row wider than schema, excess cells dropped")
	}

	for col := 0; col < width; col++ {
		if err := e.appendCell(row, col, row.Cell(col)); err != nil {
			return err
		}
	}
	e.rows++
	return nil
}

// Flush builds a record from the buffered rows and resets the builder. The
// caller owns the record and must Release it.
func (e *Encoder) Flush() (arrow.Record, error) {
	if e.rows == 0 {
		return nil, errors.New(errors.ErrorTypeInternal, "flush of empty encoder")
	}
	rec := e.builder.NewRecord()
	e.rows = 0
	return rec, nil
}

// appendCell coerces one cell to its column type and appends it.
func (e *Encoder) appendCell(row *models.Row, col int, cell models.Cell) error {
	if cell.IsEmpty() {
		e.builder.Field(col).AppendNull()
		return nil
	}

	colType := e.schema.Columns[col].Type
	switch b := e.builder.Field(col).(type) {
	case *array.StringBuilder:
		// Everything renders; error cells keep their literal.
		b.Append(cell.Format())
		return nil

	case *array.BooleanBuilder:
		if v, ok := coerceBool(cell); ok {
			b.Append(v)
			return nil
		}

	case *array.Int64Builder:
		if v, ok := coerceInt(cell); ok {
			b.Append(v)
			return nil
		}

	case *array.Float64Builder:
		if v, ok := coerceFloat(cell); ok {
			b.Append(v)
			return nil
		}

	case *array.TimestampBuilder:
		if v, ok := coerceTime(cell); ok {
			b.Append(arrow.Timestamp(v.UnixMicro()))
			return nil
		}
	}

	if e.opts.Strict {
		return errors.Newf(errors.ErrorTypeTypeCoercion,
			"cannot coerce %s value %q to column type %s",
			cell.Type, cell.Format(), colType).
			WithRow(row.Index).WithColumn(col)
	}
	e.builder.Field(col).AppendNull()
	e.countCoercion(row.Index, col, cell.Format())
	return nil
}

func (e *Encoder) countCoercion(row int64, col int, raw string) {
	e.coercions++
	if e.warned < warnLimit {
		e.warned++
		e.log.Warn("value could not be coerced, written as null",
			zap.Int64("row", row),
			zap.Int("column", col),
			zap.String("value", raw))
		if e.warned == warnLimit {
			e.log.Warn("further coercion warnings suppressed; totals reported in summary")
		}
	}
}

// coerceBool accepts bools and parseable text.
func coerceBool(c models.Cell) (bool, bool) {
	switch c.Type {
	case models.CellBool:
		return c.Bool, true
	case models.CellText:
		v, err := strconv.ParseBool(c.Text)
		return v, err == nil
	}
	return false, false
}

// coerceInt accepts ints, bools as 0/1, integral floats, and parseable text.
func coerceInt(c models.Cell) (int64, bool) {
	switch c.Type {
	case models.CellInt:
		return c.Int, true
	case models.CellBool:
		if c.Bool {
			return 1, true
		}
		return 0, true
	case models.CellFloat:
		i := int64(c.Float)
		return i, float64(i) == c.Float
	case models.CellText:
		v, err := strconv.ParseInt(c.Text, 10, 64)
		return v, err == nil
	}
	return 0, false
}

// coerceFloat accepts floats, ints, bools as 0/1, and parseable text.
func coerceFloat(c models.Cell) (float64, bool) {
	switch c.Type {
	case models.CellFloat:
		return c.Float, true
	case models.CellInt:
		return float64(c.Int), true
	case models.CellBool:
		if c.Bool {
			return 1, true
		}
		return 0, true
	case models.CellText:
		v, err := strconv.ParseFloat(c.Text, 64)
		return v, err == nil
	}
	return 0, false
}

// timeLayouts are the text forms coerceTime attempts, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceTime accepts datetimes and parseable text.
func coerceTime(c models.Cell) (time.Time, bool) {
	switch c.Type {
	case models.CellDateTime:
		return c.Time, true
	case models.CellText:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, c.Text); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
