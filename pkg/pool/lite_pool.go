package pool

// Pool is a strongly typed wrapper around sync.Pool with optional Reset()
// support. If the pooled type implements Resettable it is reset before being
// handed back to the pool.
//
//   chunks, _ := pool.NewLitePool(func() *[]byte {
//       b := make([]byte, 512)
//       return &b
//   })
//   buf := chunks.Get()
//   defer chunks.Put(buf)

import (
	"fmt"
	"sync"
)

type Resettable interface {
	Reset()
}

type Pool[T any] struct {
	pool sync.Pool
}

func NewLitePool[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, fmt.Errorf("litepool: constructor must not be nil")
	}
	if any(newFn()) == nil {
		return nil, fmt.Errorf("litepool: constructor returned nil")
	}

	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
	}, nil
}

// NewBufferPool hands out byte slices of exactly size bytes
func NewBufferPool(size int) (*Pool[*[]byte], error) {
	if size <= 0 {
		return nil, fmt.Errorf("litepool: buffer size must be positive, got %d", size)
	}
	return NewLitePool(func() *[]byte {
		b := make([]byte, size)
		return &b
	})
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // New always returns T
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
