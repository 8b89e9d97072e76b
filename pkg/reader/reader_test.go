package reader

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tabshift/tabshift/pkg/config"
	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/models"
)

// writeXLSX builds a workbook with sheets "First" (4 rows) and "Second".
func writeXLSX(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "First"))
	for i := 1; i <= 4; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("First", cell, i))
	}
	_, err := f.NewSheet("Second")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Second", "A1", "x"))

	path := filepath.Join(t.TempDir(), "wb.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func defaultOptions() Options {
	return Options{SheetIndex: config.SheetIndexUnset}
}

func TestOpenDefaultsToFirstSheet(t *testing.T) {
	r, err := Open(writeXLSX(t), defaultOptions())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "First", r.SheetName())

	row, err := r.NextRow()
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Index)
	assert.Equal(t, models.IntCell(1), row.Cell(0))
}

func TestOpenBySheetNameCaseInsensitive(t *testing.T) {
	opts := defaultOptions()
	opts.SheetName = "second"

	r, err := Open(writeXLSX(t), opts)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "Second", r.SheetName())
}

func TestOpenSheetNameNotFound(t *testing.T) {
	opts := defaultOptions()
	opts.SheetName = "Nope"

	_, err := Open(writeXLSX(t), opts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSheetNotFound))
}

func TestOpenSheetIndexOutOfRange(t *testing.T) {
	opts := defaultOptions()
	opts.SheetIndex = 5

	_, err := Open(writeXLSX(t), opts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSheetNotFound))
}

func TestSkipRowsReindexesStream(t *testing.T) {
	opts := defaultOptions()
	opts.SkipRows = 2

	r, err := Open(writeXLSX(t), opts)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.NextRow()
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Index, "post-skip rows are renumbered from zero")
	assert.Equal(t, int64(2), row.SheetIndex, "physical position is preserved")
	assert.Equal(t, models.IntCell(3), row.Cell(0))

	_, err = r.NextRow()
	require.NoError(t, err)
	_, err = r.NextRow()
	assert.Equal(t, io.EOF, err)
}

func TestSkipRowsPastEndIsEOFNotError(t *testing.T) {
	opts := defaultOptions()
	opts.SkipRows = 100

	r, err := Open(writeXLSX(t), opts)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.NextRow()
	assert.Equal(t, io.EOF, err)
}

func TestOpenRejectsUnknownContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-workbook.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := Open(path, defaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat))
}

func TestSheetNames(t *testing.T) {
	names, err := SheetNames(writeXLSX(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, names)
}
