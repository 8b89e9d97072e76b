// Package tabshift converts spreadsheet files (.xlsx, .xlsb) into Apache
// Parquet with bounded memory: rows are streamed from the sheet, typed by a
// widening schema inferencer, encoded into Arrow record batches, and written
// as Parquet row groups in input order.
//
// # Pipeline
//
// One conversion is a single forward pass:
//
//	reader → schema inference (buffered prefix) → batch encoder → parquet writer
//
// At most one in-flight row batch plus one encoded Arrow record is resident
// at a time; the inference prefix is the only additional buffering.
//
// # Quick Start
//
//	tabshift convert --input report.xlsb --output report.parquet
//	tabshift sheets --input report.xlsb
//
// # Key Packages
//
//	pkg/reader    - Streaming sheet readers (xlsx via excelize, native xlsb)
//	pkg/schema    - Column type inference with monotone widening
//	pkg/encoder   - Row batches to Arrow records with type coercion
//	pkg/writer    - Atomic Parquet output (temp file + rename on success)
//	pkg/config    - Per-invocation configuration with validation
//	pkg/errors    - Typed errors that map to process exit codes
//
// # Guarantees
//
// Output batch order equals input row order. A failed or interrupted
// conversion never leaves a file at the destination path; the Parquet footer
// is written and fsynced before the temp file is renamed into place.
package tabshift
