// Package ident issues unique integer identities for expression leaves,
// auxiliary variables and generated constraints.
//
// Ids are drawn from a monotonic counter. The process-wide counter is never
// reset and never hands out the same value twice; arenas that need a
// reproducible sequence (golden snapshots, tests) carry their own Allocator.
package ident

import "sync/atomic"

// Allocator is a monotonic id counter.
//
// Thread-safety: Allocator is safe for concurrent use (atomic operations).
type Allocator struct {
	seq atomic.Int64
}

// New creates an allocator whose first id is 1.
func New() *Allocator {
	return &Allocator{}
}

// NewAt creates an allocator positioned at start; the first id is start+1.
func NewAt(start int64) *Allocator {
	a := &Allocator{}
	a.seq.Store(start)
	return a
}

// Next returns a fresh id.
// Calls are linearizable - each call returns a unique, increasing value.
func (a *Allocator) Next() int64 {
	return a.seq.Add(1)
}

// Current returns the last id handed out without allocating.
func (a *Allocator) Current() int64 {
	return a.seq.Load()
}

// process is the process-wide allocator. It is initialised at program start
// and has no teardown; ids are never reclaimed.
var process = New()

// Default returns the process-wide allocator.
func Default() *Allocator {
	return process
}

// Next returns a fresh id from the process-wide allocator.
func Next() int64 {
	return process.Next()
}
