package network

// Retract-side drive. Deletion is two-phase: a match is flagged
// deleting at the start so concurrent traversal skips it, unlinked
// from its memory and lineage, and only returned to the free list at
// a safe point if it was busy when deletion began.
//
// retractDescendants collects one level of children on a slice and
// deletes them; deleteMatch calls it again for each child's own
// descendants, so the call depth grows with the rule's join depth.

// RetractEntity removes the entity's alpha entries and everything
// derived from them. Retracting twice is a no-op.
func (n *Network) RetractEntity(ent Entity) {
	core := ent.Core()
	if core.Retracted {
		return
	}
	core.Retracted = true

	prev := n.JoinOperationInProgress
	n.JoinOperationInProgress = true
	defer func() { n.JoinOperationInProgress = prev }()

	ams := core.alphaMatches
	core.alphaMatches = nil
	for _, am := range ams {
		n.retractAlphaMatch(am)
	}
}

// retractAlphaMatch removes one alpha entry and every right-memory
// copy hanging off it.
func (n *Network) retractAlphaMatch(am *PartialMatch) {
	am.Deleting = true
	if alpha, ok := am.Owner.(*AlphaNode); ok {
		alpha.Memory.Remove(am)
	}

	for rm := am.RightChildren; rm != nil; {
		next := rm.NextRightChild
		n.deleteMatch(rm)
		rm = next
	}
	n.discard(am)
}

// retractDescendants deletes the subtree of matches descending from
// pm on the given side.
func (n *Network) retractDescendants(pm *PartialMatch, side Direction) {
	var stack []*PartialMatch
	if side == EnterLeft {
		for c := pm.LeftChildren; c != nil; c = c.NextLeftChild {
			stack = append(stack, c)
		}
	} else {
		for c := pm.RightChildren; c != nil; c = c.NextRightChild {
			stack = append(stack, c)
		}
	}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.deleteMatch(c)
	}
}

// deleteMatch removes a single match from its join, handling the
// side-specific consequences, then deletes its own descendants.
func (n *Network) deleteMatch(pm *PartialMatch) {
	if pm.Deleting {
		return
	}
	pm.Deleting = true

	j, _ := pm.Owner.(*JoinNode)
	wasBasis := pm.TheActivation != nil

	// Entities logically supported by this match lose their basis
	if len(pm.LogicalDependents) > 0 && n.LogicalRetract != nil {
		deps := pm.LogicalDependents
		pm.LogicalDependents = nil
		for _, ent := range deps {
			n.LogicalRetract(ent)
		}
	}

	// Drop the activation before any underlying match is freed
	if wasBasis {
		n.removeActivation(pm.TheActivation)
	}

	switch {
	case j == nil:
		// Alpha-owned entries only reach here through retractAlphaMatch

	case pm.RHSMemory:
		j.RightMemory.Remove(pm)
		if j.PatternIsNegated {
			n.releaseBlocked(j, pm)
		} else if j.PatternIsExists {
			n.releaseSupported(j, pm)
		} else {
			n.retractDescendants(pm, EnterRight)
		}

	default:
		if pm.Blocker != nil {
			unblock(pm)
		}
		if !wasBasis {
			j.LeftMemory.Remove(pm)
		}
		n.retractDescendants(pm, EnterLeft)
	}

	unlinkLeftChild(pm)
	unlinkRightChild(pm)
	n.discard(pm)
}

// releaseBlocked handles a retiring right match of a negated join:
// each left match it was blocking either finds the next conflicting
// right match or becomes satisfied and emits.
func (n *Network) releaseBlocked(j *JoinNode, rm *PartialMatch) {
	for lm := rm.BlockList; lm != nil; {
		next := lm.NextBlocked
		unblock(lm)
		if lm.Deleting {
			lm = next
			continue
		}
		if replacement := n.FindNextConflictingMatch(j, lm, rm); replacement != nil {
			block(lm, replacement)
		} else {
			n.driveQuantified(j, lm)
		}
		lm = next
	}
}

// releaseSupported handles a retiring right match of an exists join:
// each left match it was supporting either finds another supporter or
// withdraws its emission.
func (n *Network) releaseSupported(j *JoinNode, rm *PartialMatch) {
	for lm := rm.BlockList; lm != nil; {
		next := lm.NextBlocked
		unblock(lm)
		if lm.Deleting {
			lm = next
			continue
		}
		if replacement := n.FindNextConflictingMatch(j, lm, rm); replacement != nil {
			block(lm, replacement)
		} else {
			n.retractDescendants(lm, EnterLeft)
		}
		lm = next
	}
}

// discard returns a match to the pool, or parks it on the garbage
// list when a traversal still holds it.
func (n *Network) discard(pm *PartialMatch) {
	if pm.Busy {
		n.GarbageMatches = append(n.GarbageMatches, pm)
		return
	}
	n.pool.put(pm)
}

// FlushGarbage reclaims matches deferred by two-phase deletion. Safe
// points only: between fires, after a completed assert or retract.
func (n *Network) FlushGarbage() {
	if n.JoinOperationInProgress {
		return
	}
	kept := n.GarbageMatches[:0]
	for _, pm := range n.GarbageMatches {
		if pm.Busy {
			kept = append(kept, pm)
			continue
		}
		n.pool.put(pm)
	}
	n.GarbageMatches = kept
}
