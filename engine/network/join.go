package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// Direction says which side of a join a propagated match enters
type Direction uint8

const (
	EnterLeft Direction = iota
	EnterRight
)

// JoinLink connects a join to one downstream consumer of its output
type JoinLink struct {
	Enter Direction
	Join  *JoinNode
	Next  *JoinLink
}

// JoinNode is a two-input combinator. The left input carries partial
// matches from the prior pattern tail; the right input carries the
// current pattern's alpha output, or another join's output when
// joining from the right.
type JoinNode struct {
	FirstJoin         bool
	PatternIsNegated  bool
	PatternIsExists   bool
	JoinFromTheRight  bool
	LogicalJoin       bool

	Initialize bool
	Marked     bool

	Depth uint16

	NetworkTest          *atoms.Expr
	SecondaryNetworkTest *atoms.Expr
	LeftHash             *atoms.Expr
	RightHash            *atoms.Expr

	LeftMemory  *BetaMemory
	RightMemory *BetaMemory

	// RightSideEntry is the *AlphaNode or, for join-from-the-right,
	// the *JoinNode feeding the right input.
	RightSideEntry interface{}

	// LastLevel is the left parent join, nil only on a first join
	LastLevel *JoinNode

	JoinsFromHere *JoinLink

	// RuleToActivate is set on a rule's terminal join
	RuleToActivate *Rule

	UseCount int

	// Transient dense id assigned during binary save
	SaveID uint64
}

// addLink wires a downstream consumer onto the join, preserving
// creation order so sibling joins see events left to right.
func (j *JoinNode) addLink(enter Direction, child *JoinNode) {
	link := &JoinLink{Enter: enter, Join: child}
	if j.JoinsFromHere == nil {
		j.JoinsFromHere = link
		return
	}
	last := j.JoinsFromHere
	for last.Next != nil {
		last = last.Next
	}
	last.Next = link
}

// AppendLoadedLink rebuilds a downstream link during an image load,
// preserving the saved order.
func (j *JoinNode) AppendLoadedLink(enter Direction, child *JoinNode) {
	j.addLink(enter, child)
}

func (j *JoinNode) removeLink(child *JoinNode) {
	var prev *JoinLink
	for link := j.JoinsFromHere; link != nil; link = link.Next {
		if link.Join == child {
			if prev == nil {
				j.JoinsFromHere = link.Next
			} else {
				prev.Next = link.Next
			}
			return
		}
		prev = link
	}
}

// evaluateJoin runs the join's network test over a (left, right) pair.
// An evaluation error counts as a match so a later test cannot
// spuriously suppress it; the error is latched for the surrounding
// operation and the context flag cleared.
func (n *Network) evaluateJoin(j *JoinNode, left, right *PartialMatch) bool {
	if j.NetworkTest == nil {
		return true
	}
	var lhs atoms.Frame
	if left != nil {
		lhs = &matchFrame{pm: left}
	}
	var rhs atoms.Frame
	if right != nil {
		rhs = &rightFrame{pm: right}
	}
	saved := n.Ctx.Push(lhs, rhs, j)
	v := atoms.Evaluate(&n.Ctx, j.NetworkTest)
	errored := n.Ctx.EvalError
	n.Ctx.EvalError = false
	n.Ctx.Pop(saved)

	if errored {
		n.reportEvalError(j)
		return true
	}
	return !n.Ctx.IsFalse(v)
}

// evaluateSecondary runs the secondary test gating emission from
// negated, exists, and join-from-the-right joins.
func (n *Network) evaluateSecondary(j *JoinNode, left *PartialMatch) bool {
	if j.SecondaryNetworkTest == nil {
		return true
	}
	saved := n.Ctx.Push(&matchFrame{pm: left}, nil, j)
	v := atoms.Evaluate(&n.Ctx, j.SecondaryNetworkTest)
	errored := n.Ctx.EvalError
	n.Ctx.EvalError = false
	n.Ctx.Pop(saved)

	if errored {
		n.reportEvalError(j)
		return true
	}
	return !n.Ctx.IsFalse(v)
}

// leftHashOf computes the bucket hash a match uses in this join's left
// memory.
func (n *Network) leftHashOf(j *JoinNode, pm *PartialMatch) uint64 {
	return hashExprChain(&n.Ctx, j.LeftHash, &matchFrame{pm: pm}, nil)
}

// rightHashOf computes the bucket hash a match uses in this join's
// right memory.
func (n *Network) rightHashOf(j *JoinNode, pm *PartialMatch) uint64 {
	return hashExprChain(&n.Ctx, j.RightHash, nil, &rightFrame{pm: pm})
}

// newEmptyMatch seeds a first join's left memory with the
// beginning-of-rule match of arity zero.
func (n *Network) newEmptyMatch(j *JoinNode) *PartialMatch {
	pm := n.pool.get()
	pm.Owner = j
	pm.Hash = 0
	j.LeftMemory.Insert(pm)
	return pm
}

// rightAlpha returns the alpha terminal feeding the join, nil for
// join-from-the-right.
func (j *JoinNode) rightAlpha() *AlphaNode {
	a, _ := j.RightSideEntry.(*AlphaNode)
	return a
}

// rightJoin returns the join feeding the right input, nil unless
// joining from the right.
func (j *JoinNode) rightJoin() *JoinNode {
	r, _ := j.RightSideEntry.(*JoinNode)
	return r
}
