package atoms

// ExprPool interns expression trees. A hashed expression is immutable,
// shared between every construct using the identical subtree, and
// carries a stable id used only for serialization.
type ExprPool struct {
	reg     *Registry
	entries map[uint64][]*Expr
	count   uint64 // interned trees, not nodes
}

// NewExprPool creates an empty pool
func NewExprPool(reg *Registry) *ExprPool {
	return &ExprPool{
		reg:     reg,
		entries: make(map[uint64][]*Expr),
	}
}

// Count returns the number of interned trees
func (p *ExprPool) Count() uint64 {
	return p.count
}

// Intern returns the shared copy of the tree, adding it on first
// sight. The returned tree must be released through Release, not
// mutated. Interning retains every atom the tree references.
func (p *ExprPool) Intern(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	h := e.Hash()
	for _, cand := range p.entries[h] {
		if cand.Equal(e) {
			cand.count++
			return cand
		}
	}
	shared := e.Copy()
	markHashed(shared)
	shared.count = 1
	RetainTree(shared)
	p.entries[h] = append(p.entries[h], shared)
	p.count++
	return shared
}

func markHashed(e *Expr) {
	if e == nil {
		return
	}
	e.hashed = true
	markHashed(e.Arg)
	markHashed(e.Next)
}

// Hashed reports whether the node belongs to the pool
func (e *Expr) Hashed() bool {
	return e != nil && e.hashed
}

// Release drops one reference to a hashed tree, removing it from the
// pool and releasing its atoms when the last reference goes.
func (p *ExprPool) Release(e *Expr) {
	if e == nil || !e.hashed {
		return
	}
	e.count--
	if e.count > 0 {
		return
	}
	h := e.Hash()
	chain := p.entries[h]
	for i, cand := range chain {
		if cand == e {
			p.entries[h] = append(chain[:i], chain[i+1:]...)
			if len(p.entries[h]) == 0 {
				delete(p.entries, h)
			}
			p.count--
			ReleaseTree(e)
			return
		}
	}
}

// Walk visits every interned tree root
func (p *ExprPool) Walk(fn func(*Expr)) {
	for _, chain := range p.entries {
		for _, e := range chain {
			fn(e)
		}
	}
}

// Clear drops the whole pool, releasing every referenced atom.
func (p *ExprPool) Clear() {
	p.Walk(ReleaseTree)
	p.entries = make(map[uint64][]*Expr)
	p.count = 0
}
