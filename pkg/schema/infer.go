// Package schema infers column schemas from sampled rows.
//
// Inference widens each column along a fixed lattice as cells are observed:
//
//	empty < bool < int < float < text
//
// Datetime sits off the chain: a column stays timestamp only while every
// non-empty cell is a datetime; mixing datetime with bools or numbers widens
// straight to text. Error cells contribute nothing. Widening is monotone, so
// observing rows in any order yields the same result, and text is a fixed
// point.
package schema

import (
	"github.com/tabshift/tabshift/pkg/models"
)

// Widen returns the least column type admitting both operands.
func Widen(a, b models.ColumnType) models.ColumnType {
	if a == b {
		return a
	}
	if a == models.TypeUnknown {
		return b
	}
	if b == models.TypeUnknown {
		return a
	}
	// Distinct, both known. Timestamp only joins with itself or unknown.
	if a == models.TypeTimestamp || b == models.TypeTimestamp {
		return models.TypeString
	}
	if a == models.TypeString || b == models.TypeString {
		return models.TypeString
	}
	// bool < int < float, and the enum is ordered that way.
	if a > b {
		return a
	}
	return b
}

// cellType maps an observed cell onto the lattice. Empty and error cells map
// to unknown so they never influence a column's type.
func cellType(c models.Cell) models.ColumnType {
	switch c.Type {
	case models.CellBool:
		return models.TypeBool
	case models.CellInt:
		return models.TypeInt
	case models.CellFloat:
		return models.TypeFloat
	case models.CellText:
		return models.TypeString
	case models.CellDateTime:
		return models.TypeTimestamp
	default:
		return models.TypeUnknown
	}
}

// Inferencer accumulates per-column type state over observed rows.
type Inferencer struct {
	cols []models.ColumnType
}

// NewInferencer creates an empty inferencer; the column count grows with the
// widest row observed.
func NewInferencer() *Inferencer {
	return &Inferencer{}
}

// Observe widens the per-column state with one row's cells.
func (in *Inferencer) Observe(row *models.Row) {
	for len(in.cols) < len(row.Cells) {
		in.cols = append(in.cols, models.TypeUnknown)
	}
	for i, c := range row.Cells {
		in.cols[i] = Widen(in.cols[i], cellType(c))
	}
}

// Width returns the number of columns observed so far.
func (in *Inferencer) Width() int { return len(in.cols) }

// Resolve produces the final schema, one column per name. Names beyond the
// observed width (a header wider than the data) and columns that never saw a
// non-empty cell resolve to string; every column is nullable.
func (in *Inferencer) Resolve(name string, names []string) *models.Schema {
	cols := make([]models.Column, len(names))
	for i := range names {
		t := models.TypeUnknown
		if i < len(in.cols) {
			t = in.cols[i]
		}
		if t == models.TypeUnknown {
			t = models.TypeString
		}
		cols[i] = models.Column{
			Name:     names[i],
			Type:     t,
			Nullable: true,
		}
	}
	return models.NewSchema(name, cols)
}

// AllText returns a schema of the given width with every column typed string.
// This reproduces declare-everything-as-text conversion.
func AllText(name string, names []string) *models.Schema {
	cols := make([]models.Column, len(names))
	for i, n := range names {
		cols[i] = models.Column{Name: n, Type: models.TypeString, Nullable: true}
	}
	return models.NewSchema(name, cols)
}
