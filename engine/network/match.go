package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// Bind is one entity binding inside a partial match. The entity is nil
// when the position corresponds to a not-CE slot.
type Bind struct {
	Entity  Entity
	Markers []SlotMarker
}

// PartialMatch is a fixed-shape record linking one combination of
// entity bindings to the node that owns it. Lineage links form a tree
// used for subtree retraction without memory rescans; memory links
// thread the match through its hash bucket.
type PartialMatch struct {
	// Owner is the join or alpha node whose memory holds the match
	Owner interface{}

	RHSMemory bool
	Deleting  bool
	Busy      bool

	Hash uint64

	Binds []Bind

	// Memory chain within one bucket
	NextInMemory *PartialMatch
	PrevInMemory *PartialMatch

	// Lineage
	LeftParent  *PartialMatch
	RightParent *PartialMatch

	LeftChildren  *PartialMatch // matches whose LeftParent is this
	RightChildren *PartialMatch // matches whose RightParent is this

	NextLeftChild  *PartialMatch
	PrevLeftChild  *PartialMatch
	NextRightChild *PartialMatch
	PrevRightChild *PartialMatch

	// Negated-join blocking. Blocker is the first conflicting right
	// match; BlockList heads the left matches blocked by this match.
	Blocker     *PartialMatch
	BlockList   *PartialMatch
	NextBlocked *PartialMatch
	PrevBlocked *PartialMatch

	// Activation whose basis this match is, when owner is a terminal
	TheActivation *Activation

	// Entities asserted logically on this basis
	LogicalDependents []Entity

	// Transient dense id assigned during binary save
	SaveID uint64
}

func (pm *PartialMatch) rightBind() *Bind {
	if len(pm.Binds) == 0 {
		return nil
	}
	if len(pm.Binds) == 1 {
		return &pm.Binds[0]
	}
	return &pm.Binds[len(pm.Binds)-1]
}

// FrameValue on the partial match itself gives the left-frame view
func (pm *PartialMatch) FrameValue(ref atoms.VarRef) atoms.Value {
	f := matchFrame{pm: pm}
	return f.FrameValue(ref)
}

// linkLeftChild threads a child into its left parent's lineage list
func linkLeftChild(child, parent *PartialMatch) {
	if parent == nil {
		return
	}
	child.LeftParent = parent
	child.NextLeftChild = parent.LeftChildren
	if parent.LeftChildren != nil {
		parent.LeftChildren.PrevLeftChild = child
	}
	parent.LeftChildren = child
}

// linkRightChild threads a child into its right parent's lineage list
func linkRightChild(child, parent *PartialMatch) {
	if parent == nil {
		return
	}
	child.RightParent = parent
	child.NextRightChild = parent.RightChildren
	if parent.RightChildren != nil {
		parent.RightChildren.PrevRightChild = child
	}
	parent.RightChildren = child
}

func unlinkLeftChild(child *PartialMatch) {
	parent := child.LeftParent
	if parent != nil && parent.LeftChildren == child {
		parent.LeftChildren = child.NextLeftChild
	}
	if child.PrevLeftChild != nil {
		child.PrevLeftChild.NextLeftChild = child.NextLeftChild
	}
	if child.NextLeftChild != nil {
		child.NextLeftChild.PrevLeftChild = child.PrevLeftChild
	}
	child.LeftParent = nil
	child.NextLeftChild = nil
	child.PrevLeftChild = nil
}

func unlinkRightChild(child *PartialMatch) {
	parent := child.RightParent
	if parent != nil && parent.RightChildren == child {
		parent.RightChildren = child.NextRightChild
	}
	if child.PrevRightChild != nil {
		child.PrevRightChild.NextRightChild = child.NextRightChild
	}
	if child.NextRightChild != nil {
		child.NextRightChild.PrevRightChild = child.PrevRightChild
	}
	child.RightParent = nil
	child.NextRightChild = nil
	child.PrevRightChild = nil
}

// block records that left is suppressed by the conflicting right match
func block(left, right *PartialMatch) {
	left.Blocker = right
	left.NextBlocked = right.BlockList
	if right.BlockList != nil {
		right.BlockList.PrevBlocked = left
	}
	right.BlockList = left
}

// unblock releases left from its blocker's list
func unblock(left *PartialMatch) {
	right := left.Blocker
	if right == nil {
		return
	}
	if right.BlockList == left {
		right.BlockList = left.NextBlocked
	}
	if left.PrevBlocked != nil {
		left.PrevBlocked.NextBlocked = left.NextBlocked
	}
	if left.NextBlocked != nil {
		left.NextBlocked.PrevBlocked = left.PrevBlocked
	}
	left.Blocker = nil
	left.NextBlocked = nil
	left.PrevBlocked = nil
}

// matchPool recycles partial-match records through a free list, the
// slab idea cut down to a single object size.
type matchPool struct {
	free []*PartialMatch
}

func (p *matchPool) get() *PartialMatch {
	n := len(p.free)
	if n == 0 {
		return &PartialMatch{}
	}
	pm := p.free[n-1]
	p.free = p.free[:n-1]
	return pm
}

func (p *matchPool) put(pm *PartialMatch) {
	*pm = PartialMatch{Binds: pm.Binds[:0]}
	p.free = append(p.free, pm)
}

// mergeBinds builds the bind array of a positive-join child
func mergeBinds(left *PartialMatch, right *Bind) []Bind {
	binds := make([]Bind, 0, len(left.Binds)+1)
	binds = append(binds, left.Binds...)
	binds = append(binds, *right)
	return binds
}

// extendBinds builds the bind array of a negated/exists-join child;
// the not-CE position carries a nil entity.
func extendBinds(left *PartialMatch) []Bind {
	binds := make([]Bind, 0, len(left.Binds)+1)
	binds = append(binds, left.Binds...)
	binds = append(binds, Bind{})
	return binds
}

// sharesPrefix reports whether the right match descends from the same
// upstream bindings as the left match: the join-from-the-right
// conflict test.
func sharesPrefix(left, right *PartialMatch) bool {
	n := len(left.Binds)
	if len(right.Binds) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if left.Binds[i].Entity != right.Binds[i].Entity {
			return false
		}
	}
	return true
}
