// Package config provides the per-invocation configuration for the
// conversion engine.
//
// One Config is constructed per conversion, populated from CLI flags and
// optionally a YAML or JSON job file, validated once, and then treated as
// read-only. The engine holds no mutable global state.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/json"
	"github.com/tabshift/tabshift/pkg/models"
)

// SheetIndexUnset marks an unsupplied --sheet-index. Sheet indexes are
// 0-based, so any negative value means "not set".
const SheetIndexUnset = -1

// Default values applied by New.
const (
	DefaultBatchSize   = 5000
	DefaultInferRows   = 1000
	DefaultCompression = "zstd"
	DefaultLogLevel    = "info"
)

// Compression codecs accepted by the writer.
var validCompression = map[string]bool{
	"zstd":   true,
	"snappy": true,
	"gzip":   true,
	"brotli": true,
	"none":   true,
}

// Config holds every knob of one conversion invocation.
type Config struct {
	// Input is the spreadsheet path (.xlsx or .xlsb).
	Input string `yaml:"input" json:"input"`
	// Output is the destination Parquet path.
	Output string `yaml:"output" json:"output"`

	// SheetName selects the sheet by name. Mutually exclusive with
	// SheetIndex; when neither is set the first sheet is converted.
	SheetName string `yaml:"sheet_name" json:"sheet_name"`
	// SheetIndex selects the sheet by 0-based index.
	SheetIndex int `yaml:"sheet_index" json:"sheet_index"`

	// SkipRows discards that many leading rows before anything else is read.
	SkipRows int `yaml:"skip_rows" json:"skip_rows"`
	// Header consumes the first post-skip row as column names.
	Header bool `yaml:"header" json:"header"`

	// BatchSize is the number of rows per encoded batch and per Parquet row
	// group. Must be > 0.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// InferRows is the inference sample size: the number of leading rows
	// buffered to resolve column types. 0 buffers the whole sheet.
	InferRows int `yaml:"infer_rows" json:"infer_rows"`

	// Strict aborts on the first type coercion failure instead of writing a
	// null and recording a warning.
	Strict bool `yaml:"strict" json:"strict"`
	// AllText skips inference and types every column as string, matching the
	// historical all-text conversion behavior.
	AllText bool `yaml:"all_text" json:"all_text"`
	// Columns declares the schema explicitly as "name:type,...", skipping
	// inference. Types: bool, int64, float64, string, timestamp.
	Columns string `yaml:"columns" json:"columns"`

	// Compression selects the Parquet codec: zstd, snappy, gzip, brotli, none.
	Compression string `yaml:"compression" json:"compression"`

	// SchemaOut, when set, writes the resolved schema as JSON to this path.
	SchemaOut string `yaml:"schema_out" json:"schema_out"`

	// LogLevel controls diagnostic verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		SheetIndex:  SheetIndexUnset,
		BatchSize:   DefaultBatchSize,
		InferRows:   DefaultInferRows,
		Compression: DefaultCompression,
		LogLevel:    DefaultLogLevel,
	}
}

// LoadFile overlays settings from a YAML or JSON job file onto cfg. Values
// present in the file win over defaults; flags applied afterwards win over
// the file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
		}
	}
	return nil
}

// Validate checks the configuration for contradictions and out-of-range
// values. It is called exactly once, before the pipeline starts.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New(errors.ErrorTypeConfig, "input path is required")
	}
	if c.Output == "" {
		return errors.New(errors.ErrorTypeConfig, "output path is required")
	}
	if c.SheetName != "" && c.SheetIndex != SheetIndexUnset {
		return errors.New(errors.ErrorTypeConfig, "sheet-name and sheet-index are mutually exclusive")
	}
	if c.SheetIndex != SheetIndexUnset && c.SheetIndex < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "sheet-index must be >= 0, got %d", c.SheetIndex)
	}
	if c.SkipRows < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "skip-rows must be >= 0, got %d", c.SkipRows)
	}
	if c.BatchSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "batch-size must be > 0, got %d", c.BatchSize)
	}
	if c.InferRows < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "infer-rows must be >= 0, got %d", c.InferRows)
	}
	if !validCompression[c.Compression] {
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression codec %q", c.Compression)
	}
	if c.AllText && c.Columns != "" {
		return errors.New(errors.ErrorTypeConfig, "all-text and columns are mutually exclusive")
	}
	if c.Columns != "" {
		if _, err := c.DeclaredColumns(); err != nil {
			return err
		}
	}
	return nil
}

// DeclaredColumns parses the Columns spec into schema columns. The spec is a
// comma-separated list of name:type pairs.
func (c *Config) DeclaredColumns() ([]models.Column, error) {
	if c.Columns == "" {
		return nil, nil
	}
	parts := strings.Split(c.Columns, ",")
	cols := make([]models.Column, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		name, typeName, ok := strings.Cut(part, ":")
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "invalid column spec %q, want name:type", part)
		}
		t, ok := models.ParseColumnType(strings.TrimSpace(typeName))
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown column type %q for column %q", typeName, name)
		}
		cols = append(cols, models.Column{Name: strings.TrimSpace(name), Type: t, Nullable: true})
	}
	return cols, nil
}
