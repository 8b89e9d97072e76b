// Command tabshift converts spreadsheet sheets (.xlsx, .xlsb) to Parquet.
//
// Diagnostics go to stderr; stdout carries only the success summary. The
// process exit code encodes the failure kind, so scripts can branch on it
// without parsing log lines.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tabshift/tabshift/internal/pipeline"
	"github.com/tabshift/tabshift/pkg/config"
	"github.com/tabshift/tabshift/pkg/errors"
	"github.com/tabshift/tabshift/pkg/logger"
	"github.com/tabshift/tabshift/pkg/reader"
)

var version = "0.1.0"

func main() {
	code := run(os.Args[1:], os.Stderr)
	logger.Sync()
	os.Exit(code)
}

// run executes the CLI and maps the outcome to the process exit code. Every
// failure prints a diagnostic to stderr; cobra's own printing is silenced so
// the error surfaces exactly once.
func run(args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "tabshift:", err)
		return errors.ExitCode(err)
	}
	return 0
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tabshift",
		Short:         "Convert spreadsheet sheets to Parquet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newConvertCommand())
	root.AddCommand(newSheetsCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabshift v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	return root
}

func newConvertCommand() *cobra.Command {
	cfg := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert one sheet of a workbook to a Parquet file",
		Long: `Convert one sheet of an .xlsx or .xlsb workbook to a Parquet file.

Column types are inferred from a leading sample of rows unless a schema is
declared with --columns or forced to text with --all-text. The output file
appears atomically: a failed conversion leaves no file at the destination.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flag values already sit in cfg; a config file supplies only the
			// settings no flag overrode.
			if configFile != "" {
				fileCfg := config.New()
				if err := fileCfg.LoadFile(configFile); err != nil {
					return err
				}
				mergeUnsetFlags(cmd, cfg, fileCfg)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runConvert(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Input, "input", "i", "", "Path to the source workbook (required unless set in --config)")
	f.StringVarP(&cfg.Output, "output", "o", "", "Destination Parquet path (required unless set in --config)")
	f.StringVar(&cfg.SheetName, "sheet-name", "", "Sheet to convert, by name (default: first sheet)")
	f.IntVar(&cfg.SheetIndex, "sheet-index", config.SheetIndexUnset, "Sheet to convert, by 0-based index")
	f.IntVar(&cfg.SkipRows, "skip-rows", 0, "Leading rows to discard before reading data")
	f.BoolVar(&cfg.Header, "header", false, "Treat the first post-skip row as column names")
	f.IntVar(&cfg.BatchSize, "batch-size", config.DefaultBatchSize, "Rows per encoded batch and Parquet row group")
	f.IntVar(&cfg.InferRows, "infer-rows", config.DefaultInferRows, "Rows sampled for type inference (0 samples the whole sheet)")
	f.BoolVar(&cfg.Strict, "strict", false, "Fail on the first cell that cannot be coerced instead of writing null")
	f.BoolVar(&cfg.AllText, "all-text", false, "Skip inference and type every column as string")
	f.StringVar(&cfg.Columns, "columns", "", "Declared schema as name:type,... (types: bool, int64, float64, string, timestamp)")
	f.StringVar(&cfg.Compression, "compression", config.DefaultCompression, "Parquet codec: zstd, snappy, gzip, brotli, none")
	f.StringVar(&cfg.SchemaOut, "schema-out", "", "Write the resolved schema as JSON to this path")
	f.StringVar(&configFile, "config", "", "YAML or JSON job file; explicit flags override it")
	f.StringVar(&cfg.LogLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")

	return cmd
}

// mergeUnsetFlags copies file-provided settings into cfg for every flag the
// user did not set explicitly.
func mergeUnsetFlags(cmd *cobra.Command, cfg, fileCfg *config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if !set("input") {
		cfg.Input = fileCfg.Input
	}
	if !set("output") {
		cfg.Output = fileCfg.Output
	}
	if !set("sheet-name") {
		cfg.SheetName = fileCfg.SheetName
	}
	if !set("sheet-index") {
		cfg.SheetIndex = fileCfg.SheetIndex
	}
	if !set("skip-rows") {
		cfg.SkipRows = fileCfg.SkipRows
	}
	if !set("header") {
		cfg.Header = fileCfg.Header
	}
	if !set("batch-size") {
		cfg.BatchSize = fileCfg.BatchSize
	}
	if !set("infer-rows") {
		cfg.InferRows = fileCfg.InferRows
	}
	if !set("strict") {
		cfg.Strict = fileCfg.Strict
	}
	if !set("all-text") {
		cfg.AllText = fileCfg.AllText
	}
	if !set("columns") {
		cfg.Columns = fileCfg.Columns
	}
	if !set("compression") {
		cfg.Compression = fileCfg.Compression
	}
	if !set("schema-out") {
		cfg.SchemaOut = fileCfg.SchemaOut
	}
	if !set("log-level") {
		cfg.LogLevel = fileCfg.LogLevel
	}
}

func runConvert(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "console",
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("converted sheet %q: %d rows, %d batches, %d columns -> %s\n",
		res.Sheet, res.RowsWritten, res.Batches, res.Schema.Width(), cfg.Output)
	if res.Coercions > 0 {
		fmt.Printf("%d value(s) could not be coerced and were written as null\n", res.Coercions)
	}
	return nil
}

func newSheetsCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the sheet names of a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := reader.SheetNames(input)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to the workbook (required)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
