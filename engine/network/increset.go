package network

// Incremental reset. When a rule is added to a non-empty engine, its
// freshly created nodes are populated as if every current entity had
// just been asserted. Nodes shared with prior rules keep their state;
// only initialize-marked nodes propagate, so existing paths are
// idempotent no-ops. Afterwards the network is bit-identical to one
// where the rule predated every assertion.

// IncrementalReset primes a newly built rule's network nodes
func (n *Network) IncrementalReset(r *Rule) {
	n.IncrementalResetInProgress = true

	r.EachDisjunct(func(d *Rule) {
		for _, j := range d.joinChain() {
			if j.Initialize && !j.Marked {
				n.primeJoin(j)
				j.Marked = true
			}
		}
	})

	// Drive every flavour's existing entities through the pattern
	// network; only initialize-marked terminals admit them.
	for _, p := range n.Parsers {
		if p.IncrementalReset != nil {
			p.IncrementalReset()
		}
	}

	n.IncrementalResetInProgress = false
	r.EachDisjunct(n.clearInitializeMarks)
	n.FlushGarbage()
}

// primeJoin populates one fresh join from whichever pre-existing
// state can seed it: a sibling join sharing the same prefix, the
// pre-existing alpha memory of its right input, or the rule-start
// empty match for a leading negated group.
func (n *Network) primeJoin(j *JoinNode) {
	// (a) copy the left input from an already-populated sibling
	if !j.FirstJoin && j.LastLevel != nil && !j.LastLevel.Initialize {
		if sib := n.primedLeftSibling(j); sib != nil {
			sib.LeftMemory.Walk(func(pm *PartialMatch) {
				if pm.Deleting {
					return
				}
				c := n.pool.get()
				c.Binds = append(c.Binds, pm.Binds...)
				linkLeftChild(c, pm.LeftParent)
				linkRightChild(c, pm.RightParent)
				n.assertLeft(c, j)
			})
		}
	}

	// (b) prime the right input from a pre-existing alpha memory
	if a := j.rightAlpha(); a != nil && !a.Initialize {
		a.Memory.Walk(func(am *PartialMatch) {
			if !am.Deleting {
				n.NetworkAssertRight(am, j)
			}
		})
	}

	// Pre-existing join-from-the-right input: copy a sibling's right
	// memory
	if rj := j.rightJoin(); rj != nil && !rj.Initialize {
		if sib := n.primedRightSibling(rj, j); sib != nil {
			sib.RightMemory.Walk(func(pm *PartialMatch) {
				if pm.Deleting {
					return
				}
				c := n.pool.get()
				c.Binds = append(c.Binds, pm.Binds...)
				linkLeftChild(c, pm.LeftParent)
				linkRightChild(c, pm.RightParent)
				n.assertRight(c, j)
			})
		}
	}

	// (c) a rule beginning with a negated group activates on nothing:
	// drive the empty match once the right side is primed
	if j.FirstJoin && j.PatternIsNegated {
		j.LeftMemory.Walk(func(pm *PartialMatch) {
			if !pm.Deleting && pm.Blocker == nil && pm.LeftChildren == nil {
				n.driveQuantified(j, pm)
			}
		})
	}
}

func (n *Network) primedLeftSibling(j *JoinNode) *JoinNode {
	for link := j.LastLevel.JoinsFromHere; link != nil; link = link.Next {
		if link.Enter == EnterLeft && link.Join != j && !link.Join.Initialize {
			return link.Join
		}
	}
	return nil
}

func (n *Network) primedRightSibling(rj, j *JoinNode) *JoinNode {
	for link := rj.JoinsFromHere; link != nil; link = link.Next {
		if link.Enter == EnterRight && link.Join != j && !link.Join.Initialize {
			return link.Join
		}
	}
	return nil
}

// clearInitializeMarks resets the build-time marks on a disjunct's
// joins, terminals, and pattern nodes.
func (n *Network) clearInitializeMarks(d *Rule) {
	for _, j := range d.joinChain() {
		j.Initialize = false
		j.Marked = false
		if a := j.rightAlpha(); a != nil {
			a.Initialize = false
			for node := a.PatternNode; node != nil; node = node.LastLevel {
				node.Initialize = false
			}
		}
	}
}
