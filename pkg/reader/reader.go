// Package reader opens spreadsheet containers and exposes their sheets as
// lazy, forward-only row streams.
//
// The container format is sniffed from the ZIP part names rather than the
// file extension: a workbook carrying xl/workbook.bin is XLSB, one carrying
// xl/workbook.xml is XLSX. Anything else is rejected as an unrecognizable
// container.
package reader

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/models"
	"github.com/tabshift/tabshift/pkg/pool"
	"github.com/tabshift/tabshift/pkg/reader/xlsb"
	"github.com/tabshift/tabshift/pkg/reader/xlsx"
)

// Options select the sheet and the leading rows to discard.
type Options struct {
	// SheetName selects a sheet by name; mutually exclusive with SheetIndex.
	SheetName string
	// SheetIndex selects a sheet by 0-based index; negative means unset.
	SheetIndex int
	// SkipRows discards that many leading rows without materializing them.
	SkipRows int
}

// SheetReader is a pull-based cursor over one sheet. NextRow returns io.EOF
// after the last row; the reader is not restartable.
type SheetReader interface {
	// NextRow returns the next row, or io.EOF at end of sheet.
	NextRow() (*models.Row, error)
	// SheetName returns the name of the sheet being read.
	SheetName() string
	// Close releases the underlying container.
	Close() error
}

// rowCursor is the contract both format backends satisfy.
type rowCursor interface {
	NextRow() (*models.Row, error)
	Close() error
}

// workbook is the contract both format backends satisfy for sheet discovery.
type workbook interface {
	SheetNames() []string
	Close() error
}

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatXLSB
)

// sniff inspects the ZIP directory to classify the container.
func sniff(path string) (format, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return formatUnknown, errors.Wrap(err, errors.ErrorTypeFormat,
			"not a recognizable spreadsheet container")
	}
	defer zr.Close()

	for _, f := range zr.File {
		switch f.Name {
		case "xl/workbook.bin":
			return formatXLSB, nil
		case "xl/workbook.xml":
			return formatXLSX, nil
		}
	}
	return formatUnknown, errors.New(errors.ErrorTypeFormat,
		"container has neither xl/workbook.bin nor xl/workbook.xml")
}

// resolveSheet maps the selector onto a sheet index. Selector validation
// (name XOR index) has already happened in config.
func resolveSheet(names []string, opts Options) (int, error) {
	if opts.SheetName != "" {
		for i, name := range names {
			if strings.EqualFold(name, opts.SheetName) {
				return i, nil
			}
		}
		return 0, errors.Newf(errors.ErrorTypeSheetNotFound,
			"no sheet named %q in workbook with %d sheet(s)", opts.SheetName, len(names))
	}
	idx := opts.SheetIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(names) {
		return 0, errors.Newf(errors.ErrorTypeSheetNotFound,
			"sheet index %d out of range, workbook has %d sheet(s)", idx, len(names))
	}
	return idx, nil
}

// Open opens the sheet selected by opts and positions the cursor past
// opts.SkipRows rows.
func Open(path string, opts Options) (SheetReader, error) {
	f, err := sniff(path)
	if err != nil {
		return nil, err
	}

	var (
		wb     workbook
		cursor func(idx int) (rowCursor, error)
	)
	switch f {
	case formatXLSB:
		b, err := xlsb.Open(path)
		if err != nil {
			return nil, err
		}
		wb = b
		cursor = func(idx int) (rowCursor, error) { return b.Sheet(idx) }
	default:
		x, err := xlsx.Open(path)
		if err != nil {
			return nil, err
		}
		wb = x
		cursor = func(idx int) (rowCursor, error) { return x.Sheet(idx) }
	}

	names := wb.SheetNames()
	idx, err := resolveSheet(names, opts)
	if err != nil {
		wb.Close()
		return nil, err
	}

	cur, err := cursor(idx)
	if err != nil {
		wb.Close()
		return nil, err
	}

	sr := &sheetReader{
		name:   names[idx],
		cursor: cur,
		wb:     wb,
	}
	if err := sr.skip(opts.SkipRows); err != nil && err != io.EOF {
		sr.Close()
		return nil, err
	}
	return sr, nil
}

// SheetNames lists the sheets of the workbook at path, in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := sniff(path)
	if err != nil {
		return nil, err
	}

	var wb workbook
	switch f {
	case formatXLSB:
		wb, err = xlsb.Open(path)
	default:
		wb, err = xlsx.Open(path)
	}
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	// Copy so the names outlive the workbook handle.
	names := append([]string(nil), wb.SheetNames()...)
	return names, nil
}

// sheetReader adapts a backend cursor: it discards skipped rows and assigns
// post-skip stream indexes.
type sheetReader struct {
	name   string
	cursor rowCursor
	wb     workbook
	index  int64
	eof    bool
}

func (s *sheetReader) NextRow() (*models.Row, error) {
	if s.eof {
		return nil, io.EOF
	}
	row, err := s.cursor.NextRow()
	if err == io.EOF {
		s.eof = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	row.Index = s.index
	s.index++
	return row, nil
}

// skip discards n leading rows one at a time; skipped rows never reach the
// pipeline.
func (s *sheetReader) skip(n int) error {
	for i := 0; i < n; i++ {
		row, err := s.cursor.NextRow()
		if err != nil {
			if err == io.EOF {
				s.eof = true
				return io.EOF
			}
			return err
		}
		pool.PutRow(row)
	}
	return nil
}

func (s *sheetReader) SheetName() string { return s.name }

func (s *sheetReader) Close() error {
	cerr := s.cursor.Close()
	if err := s.wb.Close(); err != nil {
		return err
	}
	return cerr
}
