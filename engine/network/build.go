package network

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/utils"
)

// Rule construction. Each disjunct's analyzed elements become an
// alpha chain plus a join chain; identical prefixes collapse onto
// nodes other rules already built. Freshly created nodes carry their
// initialize marks until incremental reset clears them.

// BuildRule compiles a rule definition into the network. The caller
// drives incremental reset afterwards.
func (n *Network) BuildRule(def *RuleDef) (*Rule, error) {
	if n.JoinOperationInProgress {
		return nil, utils.ErrNotDeletable
	}
	name := n.Reg.Symbol(def.Name)
	if existing := n.Constructs.FindConstruct(n.Constructs.Current, n.RuleType, def.Name); existing != nil {
		return nil, utils.WrapError(utils.ErrParse, "rule "+def.Name+" already defined")
	}

	disjunctLHS := append([][]*ParsedCE{def.LHS}, def.OtherDisjuncts...)

	var first, prev *Rule
	for _, lhs := range disjunctLHS {
		az := newAnalyzer(n)
		elems, err := az.analyze(lhs)
		if err != nil {
			n.teardownDisjuncts(first)
			return nil, err
		}

		d := &Rule{
			Salience:   clampSalience(def.Salience),
			Complexity: az.complexity,
		}
		d.Name = name
		if def.DynamicSalience != nil {
			d.DynamicSalience = n.Reg.Exprs.Intern(def.DynamicSalience)
		}
		if def.Actions != nil {
			d.Actions = n.Reg.Exprs.Intern(def.Actions)
		}

		last, err := n.buildJoinChain(elems, nil, d)
		if err != nil {
			n.teardownDisjuncts(first)
			return nil, err
		}
		d.LastJoin = last

		if first == nil {
			first = d
		} else {
			prev.Disjunct = d
		}
		prev = d
	}

	n.Constructs.AddConstruct(n.Constructs.Current, n.RuleType, first)
	first.EachDisjunct(func(d *Rule) {
		d.WhichModule = first.WhichModule
	})
	return first, nil
}

func clampSalience(s int) int {
	if s < MinSalience {
		return MinSalience
	}
	if s > MaxSalience {
		return MaxSalience
	}
	return s
}

// buildJoinChain lowers the element list onto joins, sharing where
// possible. Only the final element's join carries the rule to
// activate; terminal joins are never shared.
func (n *Network) buildJoinChain(elems []*compiledElem, left *JoinNode, rule *Rule) (*JoinNode, error) {
	for i, elem := range elems {
		var activate *Rule
		if rule != nil && i == len(elems)-1 {
			activate = rule
		}
		j, err := n.buildElem(elem, left, activate)
		if err != nil {
			return nil, err
		}
		left = j
	}
	return left, nil
}

func (n *Network) buildElem(elem *compiledElem, left *JoinNode, activate *Rule) (*JoinNode, error) {
	if elem.pattern != nil {
		alpha := n.addPattern(elem.pattern, elem.rightHash)
		return n.findOrCreateJoin(left, alpha, elem, activate), nil
	}

	// Join-from-the-right group: the inner chain shares the outer
	// chain's left source; its output enters the group join from the
	// right.
	innerLast, err := n.buildJoinChain(elem.group, left, nil)
	if err != nil {
		return nil, err
	}
	return n.findOrCreateJoin(left, innerLast, elem, activate), nil
}

// addPattern grows the alpha DAG for one compiled pattern and returns
// its terminal.
func (n *Network) addPattern(cp *compiledPattern, rightHash *atoms.Expr) *AlphaNode {
	parser := cp.parser
	node := parser.Root
	for _, spec := range cp.specs {
		node = n.findOrCreateLevel(parser, node, spec)
	}

	classBits := bitset.New(uint(cp.classID) + 1)
	classBits.Set(uint(cp.classID))

	var slotBits *bitset.BitSet
	if cp.slotBits != nil && cp.slotBits.Any() {
		slotBits = cp.slotBits
	}
	return n.findOrCreateTerminal(parser, node, classBits, slotBits, rightHash)
}

// findOrCreateJoin reuses a compatible downstream join or creates a
// new one wired onto its inputs.
func (n *Network) findOrCreateJoin(left *JoinNode, rightEntry interface{}, elem *compiledElem, activate *Rule) *JoinNode {
	var netTest, secTest, leftHash, rightHash *atoms.Expr
	if elem.joinTest != nil {
		netTest = n.Reg.Exprs.Intern(elem.joinTest)
	}
	if elem.secondaryTest != nil {
		secTest = n.Reg.Exprs.Intern(elem.secondaryTest)
	}
	if elem.leftHash != nil {
		leftHash = n.Reg.Exprs.Intern(elem.leftHash)
	}
	if elem.rightHash != nil {
		rightHash = n.Reg.Exprs.Intern(elem.rightHash)
	}
	_, jfr := rightEntry.(*JoinNode)

	if activate == nil {
		if shared := n.findShareableJoin(left, rightEntry, elem, netTest, secTest, leftHash, rightHash); shared != nil {
			n.releaseInterned(netTest, secTest, leftHash, rightHash)
			shared.UseCount++
			return shared
		}
	}

	j := &JoinNode{
		FirstJoin:            left == nil,
		PatternIsNegated:     elem.negated && !elem.exists,
		PatternIsExists:      elem.exists,
		JoinFromTheRight:     jfr,
		NetworkTest:          netTest,
		SecondaryNetworkTest: secTest,
		LeftHash:             leftHash,
		RightHash:            rightHash,
		RightSideEntry:       rightEntry,
		LastLevel:            left,
		RuleToActivate:       activate,
		UseCount:             1,
		Initialize:           true,
	}
	j.LeftMemory = NewBetaMemory(leftHash != nil)
	j.RightMemory = NewBetaMemory(rightHash != nil)
	if left != nil {
		j.Depth = left.Depth + 1
		left.addLink(EnterLeft, j)
	} else {
		j.Depth = 1
		n.newEmptyMatch(j)
	}

	switch entry := rightEntry.(type) {
	case *AlphaNode:
		entry.Joins = append(entry.Joins, j)
	case *JoinNode:
		entry.addLink(EnterRight, j)
	}
	return j
}

// findShareableJoin looks for an existing join with identical inputs,
// flags, and interned tests. Terminal joins of other rules are never
// candidates.
func (n *Network) findShareableJoin(left *JoinNode, rightEntry interface{}, elem *compiledElem, netTest, secTest, leftHash, rightHash *atoms.Expr) *JoinNode {
	match := func(j *JoinNode) bool {
		return j.RuleToActivate == nil &&
			j.RightSideEntry == rightEntry &&
			j.PatternIsNegated == (elem.negated && !elem.exists) &&
			j.PatternIsExists == elem.exists &&
			j.NetworkTest == netTest &&
			j.SecondaryNetworkTest == secTest &&
			j.LeftHash == leftHash &&
			j.RightHash == rightHash
	}

	if left != nil {
		for link := left.JoinsFromHere; link != nil; link = link.Next {
			if link.Enter == EnterLeft && match(link.Join) {
				return link.Join
			}
		}
		return nil
	}

	switch entry := rightEntry.(type) {
	case *AlphaNode:
		for _, j := range entry.Joins {
			if j.FirstJoin && match(j) {
				return j
			}
		}
	case *JoinNode:
		for link := entry.JoinsFromHere; link != nil; link = link.Next {
			if link.Enter == EnterRight && link.Join.FirstJoin && match(link.Join) {
				return link.Join
			}
		}
	}
	return nil
}

func (n *Network) releaseInterned(exprs ...*atoms.Expr) {
	for _, e := range exprs {
		if e != nil {
			n.Reg.Exprs.Release(e)
		}
	}
}

// teardownDisjuncts unwinds partially built disjuncts after a failed
// analysis.
func (n *Network) teardownDisjuncts(first *Rule) {
	if first == nil {
		return
	}
	first.EachDisjunct(func(d *Rule) {
		if d.LastJoin != nil {
			n.removeJoinChain(d)
		}
	})
}

// RemoveRule detaches a rule and every network node no other rule
// still shares. Removal is refused while a join operation is in
// progress.
func (n *Network) RemoveRule(r *Rule) error {
	if n.JoinOperationInProgress {
		return utils.ErrNotDeletable
	}
	if r.Executing {
		return utils.ErrNotDeletable
	}

	// Drop pending activations first
	disjuncts := make(map[*Rule]bool)
	r.EachDisjunct(func(d *Rule) { disjuncts[d] = true })
	for _, ag := range n.Agendas {
		for _, act := range ag.Activations() {
			if disjuncts[act.Rule] {
				n.removeActivation(act)
			}
		}
	}

	r.EachDisjunct(func(d *Rule) {
		n.removeJoinChain(d)
		if d.DynamicSalience != nil {
			n.Reg.Exprs.Release(d.DynamicSalience)
		}
		if d.Actions != nil {
			n.Reg.Exprs.Release(d.Actions)
		}
	})

	n.Constructs.RemoveConstruct(n.RuleType, r)
	n.FlushGarbage()
	return nil
}

// removeJoinChain walks a disjunct's joins downstream to upstream,
// freeing every join this rule held the last use of.
func (n *Network) removeJoinChain(d *Rule) {
	chain := d.joinChain()
	for i := len(chain) - 1; i >= 0; i-- {
		j := chain[i]
		j.UseCount--
		if j.UseCount > 0 {
			// The rule still held one use of the shared alpha
			if a := j.rightAlpha(); a != nil {
				n.detachTerminal(a)
			}
			continue
		}

		// Free remaining matches without driving retraction
		j.LeftMemory.Walk(func(pm *PartialMatch) {
			pm.Deleting = true
			if pm.Blocker != nil {
				unblock(pm)
			}
			unlinkLeftChild(pm)
			unlinkRightChild(pm)
			n.discard(pm)
		})
		j.RightMemory.Walk(func(pm *PartialMatch) {
			pm.Deleting = true
			unlinkLeftChild(pm)
			unlinkRightChild(pm)
			n.discard(pm)
		})

		if j.LastLevel != nil {
			j.LastLevel.removeLink(j)
		}
		switch entry := j.RightSideEntry.(type) {
		case *AlphaNode:
			for idx, cand := range entry.Joins {
				if cand == j {
					entry.Joins = append(entry.Joins[:idx], entry.Joins[idx+1:]...)
					break
				}
			}
			n.detachTerminal(entry)
		case *JoinNode:
			entry.removeLink(j)
		}

		n.releaseInterned(j.NetworkTest, j.SecondaryNetworkTest, j.LeftHash, j.RightHash)
	}
	d.LastJoin = nil
}
