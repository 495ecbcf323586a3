// Package pool provides object pooling on top of sync.Pool.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T) bool
	gets  atomic.Int64
	puts  atomic.Int64
	news  atomic.Int64
	drops atomic.Int64
}

// NewPool creates a new object pool. reset prepares an object for reuse
// and reports whether it should be kept; a nil reset keeps everything.
func NewPool[T any](newFunc func() T, reset func(*T) bool) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil && !p.reset(&obj) {
		p.drops.Add(1)
		return
	}
	p.puts.Add(1)
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Gets:  p.gets.Load(),
		Puts:  p.puts.Load(),
		News:  p.news.Load(),
		Drops: p.drops.Load(),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Gets  int64 `json:"gets"`
	Puts  int64 `json:"puts"`
	News  int64 `json:"news"`
	Drops int64 `json:"drops"`
}

// HitRate returns the fraction of Gets served without allocating.
func (s Stats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// MaxPooledBuffer is the largest buffer capacity Buffers keeps. Responses
// carrying large files would otherwise pin their memory in the pool.
const MaxPooledBuffer = 64 << 10

const initialBufferSize = 4096

// NewBufferPool returns a pool of byte buffers that discards any buffer
// grown beyond maxCap. New buffers never start larger than maxCap.
func NewBufferPool(maxCap int) *Pool[*bytes.Buffer] {
	size := min(initialBufferSize, max(maxCap, 0))
	return NewPool(
		func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, size))
		},
		func(b **bytes.Buffer) bool {
			if (*b).Cap() > maxCap {
				return false
			}
			(*b).Reset()
			return true
		},
	)
}

// Buffers holds the scratch buffers responses are rendered into.
var Buffers = NewBufferPool(MaxPooledBuffer)
