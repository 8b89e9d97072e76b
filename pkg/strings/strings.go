// Package strings provides pooled string building and formatting helpers for
// the hot paths of the conversion pipeline (error rendering, header
// deduplication).
package strings

import (
	"fmt"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// WARNING: the returned string shares memory with the slice; the slice must
// not be modified afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Builder is a minimal byte-backed string builder suitable for pooling.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends a string.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string sharing the builder's buffer. Callers that
// outlive the builder must Clone the result.
func (b *Builder) String() string { return BytesToString(b.buf) }

// Len returns the current length.
func (b *Builder) Len() int { return len(b.buf) }

// Reset clears the builder for reuse.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

var builderPool = sync.Pool{
	New: func() interface{} { return NewBuilder(256) },
}

// GetBuilder fetches a reset builder from the pool.
func GetBuilder() *Builder {
	b := builderPool.Get().(*Builder)
	b.Reset()
	return b
}

// PutBuilder returns a builder to the pool.
func PutBuilder(b *Builder) {
	if b == nil {
		return
	}
	builderPool.Put(b)
}

// Clone returns a copy of s backed by freshly allocated memory. Required
// before a pooled builder's String result escapes the pooled buffer.
func Clone(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, s)
	return BytesToString(b)
}

// Sprintf is a pooled alternative to fmt.Sprintf.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	b := GetBuilder()
	defer PutBuilder(b)
	fmt.Fprintf(b, format, args...)
	return Clone(b.String())
}

// Concat concatenates strings through a pooled builder.
func Concat(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	b := GetBuilder()
	defer PutBuilder(b)
	for _, s := range parts {
		b.WriteString(s)
	}
	return Clone(b.String())
}
