// Package errors provides structured error handling for the conversion
// engine. Every failure surfaced to the user carries one of the ErrorType
// categories below; the CLI maps the category to the process exit code.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/tabshift/tabshift/pkg/strings"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents unexpected internal errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents invalid invocation or configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFormat represents an unreadable or unsupported container
	ErrorTypeFormat ErrorType = "format"
	// ErrorTypeSheetNotFound represents a sheet selector matching no sheet
	ErrorTypeSheetNotFound ErrorType = "sheet_not_found"
	// ErrorTypeCorruptData represents a mid-stream decode failure; always fatal
	ErrorTypeCorruptData ErrorType = "corrupt_data"
	// ErrorTypeTypeCoercion represents a value that does not fit its column
	// type; fatal in strict mode, recorded and nulled in lenient mode
	ErrorTypeTypeCoercion ErrorType = "type_coercion"
	// ErrorTypeIO represents a read/write failure at the filesystem boundary
	ErrorTypeIO ErrorType = "io"
)

// ExitCode maps an error to the engine's process exit status. Success is 0;
// every failure category gets a distinct non-zero code so the wrapper can
// tell them apart without parsing stderr.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Type {
	case ErrorTypeConfig:
		return 2
	case ErrorTypeFormat:
		return 3
	case ErrorTypeSheetNotFound:
		return 4
	case ErrorTypeCorruptData:
		return 5
	case ErrorTypeTypeCoercion:
		return 6
	case ErrorTypeIO:
		return 7
	default:
		return 1
	}
}

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRow attaches the 0-based sheet row index the error occurred at.
func (e *Error) WithRow(row int64) *Error {
	return e.WithDetail("row", row)
}

// WithColumn attaches the 0-based column index the error occurred at.
func (e *Error) WithColumn(col int) *Error {
	return e.WithDetail("column", col)
}

// New creates a new error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As is a convenience re-export of the stdlib errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
