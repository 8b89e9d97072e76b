// Package pool provides typed object pooling for the conversion pipeline.
// Rows and row batches cycle through the pipeline at high rate; pooling them
// keeps steady-state allocation flat regardless of sheet size.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/tabshift/tabshift/pkg/models"
)

// Pool is a typed wrapper around sync.Pool with an optional reset hook.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a typed pool with custom allocation and reset functions.
func New[T any](newFn func() T, resetFn func(T)) *Pool[T] {
	p := &Pool[T]{reset: resetFn}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get fetches an object from the pool, allocating if necessary.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put resets the object and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns total allocations and objects currently checked out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

var rowPool = New(
	func() *models.Row { return &models.Row{Cells: make([]models.Cell, 0, 32)} },
	func(r *models.Row) {
		r.Index = 0
		r.SheetIndex = 0
		r.Cells = r.Cells[:0]
	},
)

// GetRow fetches a cleared row from the global row pool.
func GetRow() *models.Row { return rowPool.Get() }

// PutRow returns a row to the global row pool. The caller must not touch the
// row afterwards.
func PutRow(r *models.Row) {
	if r != nil {
		rowPool.Put(r)
	}
}

var batchPool = New(
	func() *models.RowBatch { return models.NewRowBatch(0) },
	func(b *models.RowBatch) { b.Reset() },
)

// GetBatch fetches an empty row batch from the global batch pool.
func GetBatch() *models.RowBatch { return batchPool.Get() }

// PutBatch releases every row in the batch back to the row pool and returns
// the batch itself to the batch pool.
func PutBatch(b *models.RowBatch) {
	if b == nil {
		return
	}
	for _, r := range b.Rows {
		PutRow(r)
	}
	batchPool.Put(b)
}
