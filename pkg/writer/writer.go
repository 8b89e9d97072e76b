// Package writer persists Arrow record batches as a Parquet file.
//
// Output is atomic: batches stream into a temp file next to the destination,
// and the destination path only comes into existence on a successful Close.
// A failed or aborted conversion leaves no partial file behind.
package writer

import (
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/tabshift/tabshift/pkg/errors"
	stringpool "github.com/tabshift/tabshift/pkg/strings"
)

// Options configure the Parquet file writer.
type Options struct {
	// Compression names the column codec: zstd (default), snappy, gzip,
	// brotli, or none.
	Compression string
	// BatchSize sizes the row groups; each flushed batch becomes one group.
	BatchSize int
}

// codecs maps the accepted compression names onto parquet codecs.
var codecs = map[string]compress.Compression{
	"":       compress.Codecs.Zstd,
	"zstd":   compress.Codecs.Zstd,
	"snappy": compress.Codecs.Snappy,
	"gzip":   compress.Codecs.Gzip,
	"brotli": compress.Codecs.Brotli,
	"none":   compress.Codecs.Uncompressed,
}

// Codec resolves a compression name, reporting whether it is recognized.
func Codec(name string) (compress.Compression, bool) {
	c, ok := codecs[name]
	return c, ok
}

// noCloseWriter hides the underlying file's Closer from the parquet writer,
// which closes any io.Closer it is handed. Close must sync and close the file
// itself, after the footer is written and before the rename.
type noCloseWriter struct {
	f *os.File
}

func (w noCloseWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

// ParquetWriter writes record batches to a temp file and renames it onto the
// destination on Close.
type ParquetWriter struct {
	dest    string
	tmpPath string
	f       *os.File
	fw      *pqarrow.FileWriter

	rows    int64
	batches int64
	closed  bool
}

// Open creates the temp file and the Parquet writer for the given Arrow
// schema. The temp file lives in the destination directory so the final
// rename never crosses filesystems.
func Open(dest string, schema *arrow.Schema, opts Options) (*ParquetWriter, error) {
	codec, ok := Codec(opts.Compression)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression codec %q", opts.Compression)
	}

	tmpPath := stringpool.Sprintf("%s.tmp.%d", dest, os.Getpid())
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create output file")
	}

	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithMaxRowGroupLength(int64(opts.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
	)

	fw, err := pqarrow.NewFileWriter(schema, noCloseWriter{f: f}, props, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create parquet writer")
	}

	return &ParquetWriter{
		dest:    dest,
		tmpPath: tmpPath,
		f:       f,
		fw:      fw,
	}, nil
}

// WriteBatch writes one record batch as its own row group, in arrival order.
func (w *ParquetWriter) WriteBatch(rec arrow.Record) error {
	if err := w.fw.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write record batch")
	}
	w.rows += rec.NumRows()
	w.batches++
	return nil
}

// Close finalizes the Parquet footer, syncs the temp file, and renames it
// onto the destination. Only after a successful Close does the destination
// path exist.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.fw.Close(); err != nil {
		w.f.Close()
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to finalize parquet file")
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to sync output file")
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close output file")
	}
	if err := os.Rename(w.tmpPath, w.dest); err != nil {
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to move output into place")
	}
	return nil
}

// Abort discards the temp file and never touches the destination. Safe to
// call after Close, where it is a no-op.
func (w *ParquetWriter) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.fw.Close()
	w.f.Close()
	os.Remove(w.tmpPath)
}

// TempPath returns the in-progress output path, for diagnostics.
func (w *ParquetWriter) TempPath() string { return w.tmpPath }

// Dest returns the destination path.
func (w *ParquetWriter) Dest() string { return filepath.Clean(w.dest) }

// RowsWritten returns the number of rows written so far.
func (w *ParquetWriter) RowsWritten() int64 { return w.rows }

// BatchesWritten returns the number of row groups written so far.
func (w *ParquetWriter) BatchesWritten() int64 { return w.batches }
