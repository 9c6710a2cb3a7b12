package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// Beta memory sizes. A memory without a hash expression degenerates to
// a single bucket.
const (
	initialBetaSize = 17
	resizeLoad      = 4 // grow when count exceeds size * load
)

// BetaMemory is a hashed bucket table of partial matches keyed by a
// join's hash expression; each bucket chains its matches. Insertion
// order is preserved within a bucket.
type BetaMemory struct {
	Size    uint64
	Count   uint64
	Buckets []*PartialMatch
	last    []*PartialMatch
}

// NewBetaMemory creates a memory sized for the presence of a hash
// expression.
func NewBetaMemory(hashed bool) *BetaMemory {
	size := uint64(1)
	if hashed {
		size = initialBetaSize
	}
	return &BetaMemory{
		Size:    size,
		Buckets: make([]*PartialMatch, size),
		last:    make([]*PartialMatch, size),
	}
}

// Insert appends the match to its bucket
func (m *BetaMemory) Insert(pm *PartialMatch) {
	b := pm.Hash % m.Size
	if m.last[b] == nil {
		m.Buckets[b] = pm
	} else {
		m.last[b].NextInMemory = pm
		pm.PrevInMemory = m.last[b]
	}
	m.last[b] = pm
	m.Count++
}

// Remove unlinks the match from its bucket
func (m *BetaMemory) Remove(pm *PartialMatch) {
	b := pm.Hash % m.Size
	if m.Buckets[b] == pm {
		m.Buckets[b] = pm.NextInMemory
	}
	if m.last[b] == pm {
		m.last[b] = pm.PrevInMemory
	}
	if pm.PrevInMemory != nil {
		pm.PrevInMemory.NextInMemory = pm.NextInMemory
	}
	if pm.NextInMemory != nil {
		pm.NextInMemory.PrevInMemory = pm.PrevInMemory
	}
	pm.NextInMemory = nil
	pm.PrevInMemory = nil
	m.Count--
}

// Bucket returns the head of the chain a hash lands in
func (m *BetaMemory) Bucket(hash uint64) *PartialMatch {
	return m.Buckets[hash%m.Size]
}

// MaybeResize grows the table when the load factor is exceeded.
// Resizing is skipped for degenerate single-bucket memories and when
// globally disabled.
func (m *BetaMemory) MaybeResize(allowed bool) {
	if !allowed || m.Size <= 1 || m.Count <= m.Size*resizeLoad {
		return
	}
	newSize := m.Size*2 + 1
	buckets := make([]*PartialMatch, newSize)
	last := make([]*PartialMatch, newSize)

	for i := uint64(0); i < m.Size; i++ {
		pm := m.Buckets[i]
		for pm != nil {
			next := pm.NextInMemory
			pm.NextInMemory = nil
			pm.PrevInMemory = nil
			b := pm.Hash % newSize
			if last[b] == nil {
				buckets[b] = pm
			} else {
				last[b].NextInMemory = pm
				pm.PrevInMemory = last[b]
			}
			last[b] = pm
			pm = next
		}
	}
	m.Size = newSize
	m.Buckets = buckets
	m.last = last
}

// Walk visits every match in bucket order
func (m *BetaMemory) Walk(fn func(*PartialMatch)) {
	for i := uint64(0); i < m.Size; i++ {
		for pm := m.Buckets[i]; pm != nil; pm = pm.NextInMemory {
			fn(pm)
		}
	}
}

// Contents snapshots the memory for introspection and tests
func (m *BetaMemory) Contents() []*PartialMatch {
	out := make([]*PartialMatch, 0, m.Count)
	m.Walk(func(pm *PartialMatch) {
		if !pm.Deleting {
			out = append(out, pm)
		}
	})
	return out
}

// hashExprChain evaluates a hash expression list over a frame,
// combining the element hashes. Both sides of a join must evaluate
// their paired expressions to the same value for the bucket pair-up to
// work.
func hashExprChain(ctx *atoms.Context, chain *atoms.Expr, lhs, rhs atoms.Frame) uint64 {
	if chain == nil {
		return 0
	}
	saved := ctx.Push(lhs, rhs, ctx.CurrentJoin)
	var h uint64
	for e := chain; e != nil; e = e.Next {
		v := atoms.Evaluate(ctx, e)
		h = h*31 + atoms.ValueHash(v)
	}
	ctx.Pop(saved)
	return h
}
