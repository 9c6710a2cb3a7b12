package network

// Assert-side drive functions. A match entering a join is stored in
// that join's memory first, then paired against the opposite memory;
// successful pairs flow downstream through PPDrive or EPMDrive.

// NetworkAssertLeft handles a match arriving at a join from its left
// parent.
func (n *Network) NetworkAssertLeft(pm *PartialMatch, j *JoinNode) {
	prev := n.JoinOperationInProgress
	n.JoinOperationInProgress = true
	defer func() { n.JoinOperationInProgress = prev }()
	n.assertLeft(pm, j)
}

func (n *Network) assertLeft(pm *PartialMatch, j *JoinNode) {
	pm.Owner = j
	pm.Hash = n.leftHashOf(j, pm)
	j.LeftMemory.Insert(pm)
	j.LeftMemory.MaybeResize(n.ResizingAllowed)

	if j.PatternIsNegated || j.PatternIsExists {
		blocker := n.findConflicting(j, pm, nil)
		if j.PatternIsExists {
			if blocker != nil {
				block(pm, blocker)
				n.driveQuantified(j, pm)
			}
			return
		}
		if blocker != nil {
			block(pm, blocker)
			return
		}
		n.driveQuantified(j, pm)
		return
	}

	for rm := j.RightMemory.Bucket(pm.Hash); rm != nil; rm = rm.NextInMemory {
		if rm.Deleting {
			continue
		}
		if j.JoinFromTheRight && !sharesPrefix(pm, rm) {
			continue
		}
		if n.evaluateJoin(j, pm, rm) {
			n.PPDrive(pm, rm, j)
		}
	}
}

// NetworkAssertRight handles a match arriving at a join from its right
// input. For an alpha-fed join the incoming match is the terminal's
// alpha entry; the join stores its own copy so every right memory
// holds matches it owns.
func (n *Network) NetworkAssertRight(am *PartialMatch, j *JoinNode) {
	prev := n.JoinOperationInProgress
	n.JoinOperationInProgress = true
	defer func() { n.JoinOperationInProgress = prev }()

	rm := n.pool.get()
	rm.Owner = j
	rm.RHSMemory = true
	rm.Binds = append(rm.Binds, am.Binds...)
	linkRightChild(rm, am)
	n.assertRight(rm, j)
}

// assertRight stores an already-built right-memory match and pairs it
// against the left memory. Join-from-the-right outputs arrive here
// directly.
func (n *Network) assertRight(rm *PartialMatch, j *JoinNode) {
	rm.Owner = j
	rm.RHSMemory = true
	rm.Hash = n.rightHashOf(j, rm)
	j.RightMemory.Insert(rm)
	j.RightMemory.MaybeResize(n.ResizingAllowed)

	if j.PatternIsNegated {
		n.blockNewConflicts(j, rm)
		return
	}
	if j.PatternIsExists {
		n.supportNewMatches(j, rm)
		return
	}

	for lm := j.LeftMemory.Bucket(rm.Hash); lm != nil; lm = lm.NextInMemory {
		if lm.Deleting {
			continue
		}
		if j.JoinFromTheRight && !sharesPrefix(lm, rm) {
			continue
		}
		if n.evaluateJoin(j, lm, rm) {
			n.PPDrive(lm, rm, j)
		}
	}
}

// blockNewConflicts applies a fresh right match to a negated join:
// every previously satisfied left match it conflicts with loses its
// emission.
func (n *Network) blockNewConflicts(j *JoinNode, rm *PartialMatch) {
	for lm := j.LeftMemory.Bucket(rm.Hash); lm != nil; lm = lm.NextInMemory {
		if lm.Deleting || lm.Blocker != nil {
			continue
		}
		if j.JoinFromTheRight && !sharesPrefix(lm, rm) {
			continue
		}
		if n.evaluateJoin(j, lm, rm) {
			block(lm, rm)
			n.retractDescendants(lm, EnterLeft)
		}
	}
}

// supportNewMatches applies a fresh right match to an exists join:
// every left match gaining its first support emits.
func (n *Network) supportNewMatches(j *JoinNode, rm *PartialMatch) {
	for lm := j.LeftMemory.Bucket(rm.Hash); lm != nil; lm = lm.NextInMemory {
		if lm.Deleting || lm.Blocker != nil {
			continue
		}
		if j.JoinFromTheRight && !sharesPrefix(lm, rm) {
			continue
		}
		if n.evaluateJoin(j, lm, rm) {
			block(lm, rm)
			n.driveQuantified(j, lm)
		}
	}
}

// findConflicting locates the first right match a left match pairs
// with, skipping an excluded match mid-deletion.
func (n *Network) findConflicting(j *JoinNode, lm, exclude *PartialMatch) *PartialMatch {
	for rm := j.RightMemory.Bucket(lm.Hash); rm != nil; rm = rm.NextInMemory {
		if rm.Deleting || rm == exclude {
			continue
		}
		if j.JoinFromTheRight && !sharesPrefix(lm, rm) {
			continue
		}
		if n.evaluateJoin(j, lm, rm) {
			return rm
		}
	}
	return nil
}

// FindNextConflictingMatch searches for a replacement blocker after
// the current one is retracted.
func (n *Network) FindNextConflictingMatch(j *JoinNode, lm, retiring *PartialMatch) *PartialMatch {
	return n.findConflicting(j, lm, retiring)
}

// driveQuantified emits for a negated or exists join once membership
// is established, gated by the secondary test.
func (n *Network) driveQuantified(j *JoinNode, lm *PartialMatch) {
	if !n.evaluateSecondary(j, lm) {
		return
	}
	n.EPMDrive(lm, j)
}

// PPDrive forwards a successful positive pair: one merged child per
// downstream link, or an activation when the join terminates a rule.
func (n *Network) PPDrive(lm, rm *PartialMatch, j *JoinNode) {
	if j.RuleToActivate != nil {
		child := n.pool.get()
		child.Owner = j
		child.Binds = mergeBinds(lm, rm.rightBind())
		linkLeftChild(child, lm)
		linkRightChild(child, rm)
		n.addActivation(j.RuleToActivate, child)
		return
	}
	for link := j.JoinsFromHere; link != nil; link = link.Next {
		child := n.pool.get()
		child.Binds = mergeBinds(lm, rm.rightBind())
		linkLeftChild(child, lm)
		linkRightChild(child, rm)
		if link.Enter == EnterLeft {
			n.assertLeft(child, link.Join)
		} else {
			n.assertRight(child, link.Join)
		}
	}
}

// EPMDrive forwards an emission that carries no right binding: the
// satisfied not-CE or exists-CE slot stays empty.
func (n *Network) EPMDrive(lm *PartialMatch, j *JoinNode) {
	if j.RuleToActivate != nil {
		child := n.pool.get()
		child.Owner = j
		child.Binds = extendBinds(lm)
		linkLeftChild(child, lm)
		n.addActivation(j.RuleToActivate, child)
		return
	}
	for link := j.JoinsFromHere; link != nil; link = link.Next {
		child := n.pool.get()
		child.Binds = extendBinds(lm)
		linkLeftChild(child, lm)
		if link.Enter == EnterLeft {
			n.assertLeft(child, link.Join)
		} else {
			n.assertRight(child, link.Join)
		}
	}
}
