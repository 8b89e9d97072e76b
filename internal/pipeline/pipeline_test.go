package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tabshift/tabshift/pkg/config"
	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/json"
	"github.com/tabshift/tabshift/pkg/models"
)

// writeSheet builds a one-sheet workbook from a cell grid; nil cells are
// left unset.
func writeSheet(t *testing.T, grid [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Data"))
	for r, cells := range grid {
		for c, v := range cells {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Data", cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Input = input
	cfg.Output = filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, cfg.Validate())
	return cfg
}

func run(t *testing.T, cfg *config.Config) (*Result, error) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	return New(cfg).Run(context.Background())
}

// readTable loads the finished output back for value-level assertions.
func readTable(t *testing.T, path string) arrow.Table {
	t.Helper()

	pf, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { pf.Close() })

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)

	table, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	t.Cleanup(table.Release)
	return table
}

func TestConvertBatchSplitAndAllNullColumn(t *testing.T) {
	// Header row plus three data rows; column c never carries a value.
	input := writeSheet(t, [][]interface{}{
		{"a", "b", "c"},
		{1, "x", nil},
		{2, "y", nil},
		{3, "z", nil},
	})
	cfg := testConfig(t, input)
	cfg.Header = true
	cfg.BatchSize = 2

	res, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.RowsRead)
	assert.Equal(t, int64(3), res.RowsWritten)
	assert.Equal(t, int64(2), res.Batches, "3 rows at batch size 2 give batches [2,1]")
	assert.Equal(t, int64(0), res.Coercions)

	require.Equal(t, 3, res.Schema.Width())
	assert.Equal(t, "a", res.Schema.Columns[0].Name)
	assert.Equal(t, models.TypeInt, res.Schema.Columns[0].Type)
	assert.Equal(t, models.TypeString, res.Schema.Columns[1].Type)
	assert.Equal(t, models.TypeString, res.Schema.Columns[2].Type, "all-empty column resolves to string")

	table := readTable(t, cfg.Output)
	require.Equal(t, int64(3), table.NumRows())
	for _, chunk := range table.Column(2).Data().Chunks() {
		assert.Equal(t, chunk.Len(), chunk.NullN(), "column c must be entirely null")
	}
}

func TestConvertBatchSizeInvariance(t *testing.T) {
	// The logical output must not depend on where the batch boundaries fall.
	var grid [][]interface{}
	for i := 1; i <= 7; i++ {
		grid = append(grid, []interface{}{i, fmt.Sprintf("r%d", i)})
	}
	input := writeSheet(t, grid)

	read := func(batchSize int) ([]int64, []string) {
		cfg := testConfig(t, input)
		cfg.BatchSize = batchSize

		res, err := run(t, cfg)
		require.NoError(t, err)
		require.Equal(t, int64(7), res.RowsWritten)

		table := readTable(t, cfg.Output)
		var ids []int64
		for _, chunk := range table.Column(0).Data().Chunks() {
			arr := chunk.(*array.Int64)
			for i := 0; i < arr.Len(); i++ {
				ids = append(ids, arr.Value(i))
			}
		}
		var names []string
		for _, chunk := range table.Column(1).Data().Chunks() {
			arr := chunk.(*array.String)
			for i := 0; i < arr.Len(); i++ {
				names = append(names, arr.Value(i))
			}
		}
		return ids, names
	}

	wantIDs, wantNames := read(1)
	require.Len(t, wantIDs, 7)
	for _, size := range []int{2, 3, 7, 100} {
		ids, names := read(size)
		assert.Equal(t, wantIDs, ids, "batch size %d", size)
		assert.Equal(t, wantNames, names, "batch size %d", size)
	}
}

func TestConvertSheetNotFoundLeavesNoOutput(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1}, {2}, {3}})
	cfg := testConfig(t, input)
	cfg.SheetIndex = 5

	p := New(cfg)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSheetNotFound))
	assert.Equal(t, StateFailed, p.State())

	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr), "no output file may exist after an opening failure")
}

func TestConvertWideningLenient(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1}, {2}, {"x"}})
	cfg := testConfig(t, input)

	res, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, models.TypeString, res.Schema.Columns[0].Type, "the text value widens the column")
	assert.Equal(t, int64(0), res.Coercions, "widened column accepts all three values")
	assert.Equal(t, int64(3), res.RowsWritten)

	table := readTable(t, cfg.Output)
	strs := table.Column(0).Data().Chunk(0).(*array.String)
	assert.Equal(t, "1", strs.Value(0))
	assert.Equal(t, "x", strs.Value(2))
}

func TestConvertStrictCoercionFailureAborts(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1}, {2}, {"x"}})
	cfg := testConfig(t, input)
	cfg.Strict = true
	cfg.Columns = "n:int64" // pin the column so "x" cannot coerce

	p := New(cfg)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeCoercion))
	assert.Equal(t, StateFailed, p.State())

	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr), "aborted conversion leaves no output")
	matches, _ := filepath.Glob(cfg.Output + ".tmp.*")
	assert.Empty(t, matches, "aborted conversion removes its temp file")
}

func TestConvertPrefixInferenceCoercesLateViolations(t *testing.T) {
	// The sample window only sees ints; the text value appears after it.
	input := writeSheet(t, [][]interface{}{{1}, {2}, {"x"}})
	cfg := testConfig(t, input)
	cfg.InferRows = 2

	res, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, models.TypeInt, res.Schema.Columns[0].Type)
	assert.Equal(t, int64(1), res.Coercions, `late "x" is nulled, not fatal`)
	assert.Equal(t, int64(3), res.RowsWritten)
}

func TestConvertSkipRows(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{"junk"}, {"junk"}, {1}, {2}})
	cfg := testConfig(t, input)
	cfg.SkipRows = 2

	res, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsWritten, "rows out = rows in minus skipped")
	assert.Equal(t, models.TypeInt, res.Schema.Columns[0].Type)
}

func TestConvertAllText(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1, true}, {2.5, "x"}})
	cfg := testConfig(t, input)
	cfg.AllText = true

	res, err := run(t, cfg)
	require.NoError(t, err)

	for _, col := range res.Schema.Columns {
		assert.Equal(t, models.TypeString, col.Type)
	}

	table := readTable(t, cfg.Output)
	strs := table.Column(0).Data().Chunk(0).(*array.String)
	assert.Equal(t, "1", strs.Value(0))
	assert.Equal(t, "2.5", strs.Value(1))
}

func TestConvertDeclaredColumns(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1, "x"}, {2, "y"}})
	cfg := testConfig(t, input)
	cfg.Columns = "id:int64,name:string"

	res, err := run(t, cfg)
	require.NoError(t, err)

	require.Equal(t, 2, res.Schema.Width())
	assert.Equal(t, "id", res.Schema.Columns[0].Name)
	assert.Equal(t, models.TypeInt, res.Schema.Columns[0].Type)
	assert.Equal(t, int64(2), res.RowsWritten)
}

func TestConvertHeaderNames(t *testing.T) {
	input := writeSheet(t, [][]interface{}{
		{"id", "id", nil},
		{1, 2, 3},
	})
	cfg := testConfig(t, input)
	cfg.Header = true

	res, err := run(t, cfg)
	require.NoError(t, err)

	require.Equal(t, 3, res.Schema.Width())
	assert.Equal(t, "id", res.Schema.Columns[0].Name)
	assert.Equal(t, "id_1", res.Schema.Columns[1].Name)
	assert.Equal(t, "Field_2", res.Schema.Columns[2].Name)
	assert.Equal(t, int64(1), res.RowsWritten, "the header row is not data")
}

func TestConvertSchemaOut(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1, "x"}})
	cfg := testConfig(t, input)
	cfg.SchemaOut = filepath.Join(t.TempDir(), "schema.json")

	res, err := run(t, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.SchemaOut)
	require.NoError(t, err)

	var dumped models.Schema
	require.NoError(t, json.Unmarshal(data, &dumped))
	require.Len(t, dumped.Columns, res.Schema.Width())
	assert.Equal(t, "int64", dumped.Columns[0].TypeName)
	assert.Equal(t, "string", dumped.Columns[1].TypeName)
}

func TestConvertEmptySheetFails(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Data"))
	input := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, f.SaveAs(input))
	require.NoError(t, f.Close())

	cfg := testConfig(t, input)
	_, err := run(t, cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat))

	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvertCanceledContext(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1}, {2}})
	cfg := testConfig(t, input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(cfg)
	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State())

	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr))
	matches, _ := filepath.Glob(cfg.Output + ".tmp.*")
	assert.Empty(t, matches)
}

func TestStateProgression(t *testing.T) {
	input := writeSheet(t, [][]interface{}{{1}})
	cfg := testConfig(t, input)

	p := New(cfg)
	assert.Equal(t, StateIdle, p.State())

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State())
}

func TestStateStrings(t *testing.T) {
	names := map[State]string{
		StateIdle:       "idle",
		StateOpening:    "opening",
		StateInferring:  "inferring",
		StateConverting: "converting",
		StateFinalizing: "finalizing",
		StateDone:       "done",
		StateFailed:     "failed",
	}
	for s, want := range names {
		assert.Equal(t, want, s.String())
	}
}
