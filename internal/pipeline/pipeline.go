// Package pipeline drives one conversion end to end: open the sheet, resolve
// the schema, encode row batches, and finalize the output atomically.
package pipeline

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tabshift/tabshift/pkg/config"
	"github.com/tabshift/tabshift/pkg/encoder"
	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/json"
	"github.com/tabshift/tabshift/pkg/logger"
	"github.com/tabshift/tabshift/pkg/models"
	"github.com/tabshift/tabshift/pkg/pool"
	"github.com/tabshift/tabshift/pkg/reader"
	"github.com/tabshift/tabshift/pkg/schema"
	"github.com/tabshift/tabshift/pkg/writer"
)

// State is the pipeline's lifecycle stage. Transitions run strictly forward;
// StateFailed is terminal and reachable from any non-terminal state.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateInferring
	StateConverting
	StateFinalizing
	StateDone
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateInferring:
		return "inferring"
	case StateConverting:
		return "converting"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes a completed conversion.
type Result struct {
	Sheet       string
	RowsRead    int64
	RowsWritten int64
	Batches     int64
	Coercions   int64
	Schema      *models.Schema
}

// Pipeline converts one sheet to one Parquet file. A Pipeline is single-use:
// construct, Run once, inspect the result.
type Pipeline struct {
	cfg   *config.Config
	log   *zap.Logger
	state atomic.Int32
}

// New creates a pipeline for the given validated configuration.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		log: logger.Get(),
	}
}

// State returns the current lifecycle stage.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug("pipeline state change", zap.Stringer("state", s))
}

// fail marks the pipeline failed and emits the single terminal diagnostic.
func (p *Pipeline) fail(err error) error {
	p.setState(StateFailed)
	fields := []zap.Field{zap.Error(err)}
	var e *errors.Error
	if errors.As(err, &e) {
		fields = append(fields, zap.String("kind", string(e.Type)))
		if row, ok := e.Details["row"]; ok {
			fields = append(fields, zap.Any("row", row))
		}
		if col, ok := e.Details["column"]; ok {
			fields = append(fields, zap.Any("column", col))
		}
	}
	p.log.Error("conversion failed", fields...)
	return err
}

// Run executes the conversion. On any failure the destination path is left
// untouched and the in-progress temp file is removed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg

	p.setState(StateOpening)
	src, err := reader.Open(cfg.Input, reader.Options{
		SheetName:  cfg.SheetName,
		SheetIndex: cfg.SheetIndex,
		SkipRows:   cfg.SkipRows,
	})
	if err != nil {
		return nil, p.fail(err)
	}
	defer src.Close()
	p.log.Info("sheet opened",
		zap.String("input", cfg.Input),
		zap.String("sheet", src.SheetName()))

	p.setState(StateInferring)
	plan, err := p.resolveSchema(ctx, src)
	if err != nil {
		return nil, p.fail(err)
	}
	p.log.Info("schema resolved",
		zap.Int("columns", plan.schema.Width()),
		zap.Int("sampled_rows", plan.buffered.Len()))

	if cfg.SchemaOut != "" {
		if err := dumpSchema(cfg.SchemaOut, plan.schema); err != nil {
			pool.PutBatch(plan.buffered)
			return nil, p.fail(err)
		}
	}

	p.setState(StateConverting)
	enc := encoder.New(plan.schema, encoder.Options{Strict: cfg.Strict})
	out, err := writer.Open(cfg.Output, enc.ArrowSchema(), writer.Options{
		Compression: cfg.Compression,
		BatchSize:   cfg.BatchSize,
	})
	if err != nil {
		pool.PutBatch(plan.buffered)
		return nil, p.fail(err)
	}

	rowsRead, err := p.convert(ctx, src, plan.buffered, enc, out)
	if err != nil {
		out.Abort()
		return nil, p.fail(err)
	}

	p.setState(StateFinalizing)
	if err := out.Close(); err != nil {
		return nil, p.fail(err)
	}

	p.setState(StateDone)
	res := &Result{
		Sheet:       src.SheetName(),
		RowsRead:    rowsRead,
		RowsWritten: out.RowsWritten(),
		Batches:     out.BatchesWritten(),
		Coercions:   enc.Coercions(),
		Schema:      plan.schema,
	}
	p.log.Info("conversion complete",
		zap.Int64("rows", res.RowsWritten),
		zap.Int64("batches", res.Batches),
		zap.Int64("coercions", res.Coercions),
		zap.String("output", cfg.Output))
	return res, nil
}

// schemaPlan carries the resolved schema plus the batch of rows consumed to
// produce it, which convert replays ahead of the remaining stream.
type schemaPlan struct {
	schema   *models.Schema
	buffered *models.RowBatch
}

// resolveSchema fixes the output schema. Declared columns skip sampling
// entirely; otherwise the first infer_rows rows are buffered in one physical
// read (0 buffers the whole sheet) and either inferred over or, under
// all-text, only measured for width.
func (p *Pipeline) resolveSchema(ctx context.Context, src reader.SheetReader) (*schemaPlan, error) {
	cfg := p.cfg

	var header *models.Row
	if cfg.Header {
		row, err := src.NextRow()
		if err == io.EOF {
			return nil, errors.New(errors.ErrorTypeFormat, "sheet has no header row")
		}
		if err != nil {
			return nil, err
		}
		header = row
		defer pool.PutRow(header)
	}

	if cfg.Columns != "" {
		cols, err := cfg.DeclaredColumns()
		if err != nil {
			return nil, err
		}
		return &schemaPlan{
			schema:   models.NewSchema(src.SheetName(), cols),
			buffered: pool.GetBatch(),
		}, nil
	}

	inf := schema.NewInferencer()
	buffered := pool.GetBatch()
	for cfg.InferRows == 0 || buffered.Len() < cfg.InferRows {
		if err := ctx.Err(); err != nil {
			pool.PutBatch(buffered)
			return nil, canceled(err)
		}
		row, err := src.NextRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			pool.PutBatch(buffered)
			return nil, err
		}
		inf.Observe(row)
		buffered.Append(row)
	}

	width := inf.Width()
	if header != nil && len(header.Cells) > width {
		width = len(header.Cells)
	}
	if width == 0 {
		pool.PutBatch(buffered)
		return nil, errors.New(errors.ErrorTypeFormat, "sheet contains no data to convert")
	}

	names := schema.BuildNames(header, width)
	var s *models.Schema
	if cfg.AllText {
		s = schema.AllText(src.SheetName(), names)
	} else {
		s = inf.Resolve(src.SheetName(), names)
	}
	return &schemaPlan{schema: s, buffered: buffered}, nil
}

// convert replays the inference buffer and then drains the remaining stream,
// accumulating rows in a pooled batch and flushing it to the writer every
// cfg.BatchSize rows. Row ownership moves reader -> batch -> pool; the
// deferred PutBatch releases whatever a failure leaves behind.
func (p *Pipeline) convert(ctx context.Context, src reader.SheetReader, buffered *models.RowBatch, enc *encoder.Encoder, out *writer.ParquetWriter) (int64, error) {
	var rowsRead int64

	batch := pool.GetBatch()
	defer pool.PutBatch(batch)
	defer pool.PutBatch(buffered)

	push := func(row *models.Row) error {
		batch.Append(row)
		rowsRead++
		if batch.Len() >= p.cfg.BatchSize {
			return p.flushBatch(batch, enc, out)
		}
		return nil
	}

	for i, row := range buffered.Rows {
		if err := ctx.Err(); err != nil {
			return rowsRead, canceled(err)
		}
		buffered.Rows[i] = nil
		if err := push(row); err != nil {
			return rowsRead, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return rowsRead, canceled(err)
		}
		row, err := src.NextRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rowsRead, err
		}
		if err := push(row); err != nil {
			return rowsRead, err
		}
	}

	if batch.Len() > 0 {
		if err := p.flushBatch(batch, enc, out); err != nil {
			return rowsRead, err
		}
	}
	return rowsRead, nil
}

// flushBatch encodes the accumulated rows, releases them, and writes the
// resulting record as one row group.
func (p *Pipeline) flushBatch(batch *models.RowBatch, enc *encoder.Encoder, out *writer.ParquetWriter) error {
	var pushErr error
	for _, row := range batch.Rows {
		if pushErr = enc.Push(row); pushErr != nil {
			break
		}
	}
	for _, row := range batch.Rows {
		pool.PutRow(row)
	}
	batch.Reset()
	if pushErr != nil {
		return pushErr
	}

	rec, err := enc.Flush()
	if err != nil {
		return err
	}
	defer rec.Release()
	if err := out.WriteBatch(rec); err != nil {
		return err
	}
	p.log.Debug("batch written",
		zap.Int64("rows", rec.NumRows()),
		zap.Int64("batches", out.BatchesWritten()))
	return nil
}

// canceled wraps a context error so the terminal diagnostic names the cause.
func canceled(err error) error {
	return errors.Wrap(err, errors.ErrorTypeInternal, "conversion canceled")
}

// dumpSchema writes the resolved schema as JSON.
func dumpSchema(path string, s *models.Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to serialize schema")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write schema file")
	}
	return nil
}
