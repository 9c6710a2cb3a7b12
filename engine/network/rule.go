package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
)

// Salience bounds
const (
	MinSalience = -10000
	MaxSalience = 10000
)

// Rule is a compiled defrule. A rule with or-groups in its LHS
// compiles to a chain of disjuncts sharing one header; each disjunct
// owns its own terminal join.
type Rule struct {
	constructs.Header

	Salience   int
	Complexity uint16

	DynamicSalience *atoms.Expr
	Actions         *atoms.Expr

	// LogicalJoin marks the last join of the logical-CE prefix; facts
	// asserted by the rule's RHS depend on the basis up to that join.
	LogicalJoin *JoinNode
	LastJoin    *JoinNode

	Disjunct *Rule

	WatchActivation bool
	WatchFiring     bool

	Executing bool
}

// EachDisjunct visits the rule and its disjunct chain
func (r *Rule) EachDisjunct(fn func(*Rule)) {
	for d := r; d != nil; d = d.Disjunct {
		fn(d)
	}
}

// JoinChainOf exposes a disjunct's join chain to the serializer and
// introspection tools.
func JoinChainOf(r *Rule) []*JoinNode {
	return r.joinChain()
}

// joinChain collects the disjunct's joins upstream-to-downstream,
// including join-from-the-right subchains.
func (r *Rule) joinChain() []*JoinNode {
	var out []*JoinNode
	var walk func(j *JoinNode)
	seen := make(map[*JoinNode]bool)
	walk = func(j *JoinNode) {
		if j == nil || seen[j] {
			return
		}
		seen[j] = true
		walk(j.LastLevel)
		if rj := j.rightJoin(); rj != nil {
			walk(rj)
		}
		out = append(out, j)
	}
	walk(r.LastJoin)
	return out
}
