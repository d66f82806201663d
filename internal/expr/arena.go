package expr

import (
	"fmt"
	"sync"

	"github.com/roach88/cvxir/internal/ident"
	"github.com/roach88/cvxir/internal/ir"
)

// Arena owns the leaf records of one or more expression trees.
//
// Tree nodes hold ir.LeafID handles; a leaf's name, shape, sign and value
// live here. Value assignment and reads are guarded so a parameter can be
// updated from one goroutine while another canonicalizes (canonicalization
// never reads values).
type Arena struct {
	mu      sync.RWMutex
	ids     *ident.Allocator
	records map[ir.LeafID]*leafRecord
	order   []ir.LeafID
}

type leafRecord struct {
	kind  Kind
	name  string
	shape ir.Shape
	sign  ir.Sign
	value *ir.Matrix
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithAllocator draws leaf, auxiliary variable and constraint ids from ids
// instead of the process-wide allocator. Golden snapshots use this to get
// the same ids on every run. Ids are then unique only within ids.
func WithAllocator(ids *ident.Allocator) ArenaOption {
	return func(a *Arena) {
		a.ids = ids
	}
}

// NewArena creates an empty arena.
func NewArena(opts ...ArenaOption) *Arena {
	a := &Arena{records: make(map[ir.LeafID]*leafRecord)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NextID issues a fresh id from the arena's allocator.
func (a *Arena) NextID() int64 {
	if a.ids != nil {
		return a.ids.Next()
	}
	return ident.Next()
}

// Len returns the number of registered leaves.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.order)
}

func (a *Arena) register(kind Kind, name string, shape ir.Shape, sign ir.Sign, value *ir.Matrix) ir.LeafID {
	id := ir.LeafID(a.NextID())
	if name == "" {
		name = fmt.Sprintf("%s%d", kind.namePrefix(), id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[id] = &leafRecord{kind: kind, name: name, shape: shape, sign: sign, value: value}
	a.order = append(a.order, id)
	return id
}

func (a *Arena) record(id ir.LeafID) *leafRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.records[id]
	if !ok {
		panic(fmt.Sprintf("expr: leaf %d is not registered in this arena", id))
	}
	return r
}

// Info returns the leaf table entry for id.
func (a *Arena) Info(id ir.LeafID) (ir.LeafInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.records[id]
	if !ok {
		return ir.LeafInfo{}, false
	}
	return ir.LeafInfo{
		ID:    id,
		Kind:  r.kind.leafKind(),
		Name:  r.name,
		Shape: r.shape,
		Sign:  r.sign.String(),
	}, true
}

func (a *Arena) value(id ir.LeafID) (ir.Matrix, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r := a.records[id]
	if r == nil || r.value == nil {
		return ir.Matrix{}, false
	}
	return r.value.Clone(), true
}

func (a *Arena) setValue(id ir.LeafID, m ir.Matrix) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := m.Clone()
	a.records[id].value = &v
}
