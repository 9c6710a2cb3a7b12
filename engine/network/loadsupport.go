package network

// Load-time support for the binary image reader. The flat records of
// an image carry only the durable fields; the derived runtime state —
// selector lookup tables, the per-class terminal registry, the bloom
// prefilter, memory seeds — is rebuilt here after pointer fixup.

// RestoreBits rebuilds the runtime bitsets from the interned bitmap
// atoms after a load.
func (a *AlphaNode) RestoreBits() {
	a.classBits = bitsetFromAtom(a.ClassBitmap)
	if a.SlotBitmap != nil {
		a.slotBits = bitsetFromAtom(a.SlotBitmap)
	} else {
		a.slotBits = nil
	}
}

// ReindexLoaded rebuilds every derived index after the image reader
// has wired the node graph.
func (n *Network) ReindexLoaded() {
	for _, p := range n.Parsers {
		p.nodeCount = 0
		n.reindexSubtree(p, p.Root)

		for a := p.Terminals; a != nil; a = a.NextTerminal {
			a.RestoreBits()
			for i, ok := a.classBits.NextSet(0); ok; i, ok = a.classBits.NextSet(i + 1) {
				id := uint32(i)
				n.ClassTerminals[id] = append(n.ClassTerminals[id], a)
				n.classFilter.Add(classKey(p, id))
			}
		}
	}
}

func (n *Network) reindexSubtree(p *PatternParser, parent *PatternNode) {
	parent.selectors = nil
	for child := parent.NextLevel; child != nil; child = child.RightNode {
		p.nodeCount++
		if child.Selector && child.ConstantSel != nil {
			if parent.selectors == nil {
				parent.selectors = make(map[selKey]*PatternNode)
			}
			parent.selectors[selKey{slot: child.WhichSlot, field: child.WhichField, atom: child.ConstantSel}] = child
		}
		n.reindexSubtree(p, child)
	}
}

// SeedEmptyMatch re-creates the beginning-of-rule match a first
// join's left memory always holds.
func (n *Network) SeedEmptyMatch(j *JoinNode) {
	if !j.FirstJoin {
		return
	}
	n.newEmptyMatch(j)
}

// PrimeEmptyQuantified emits for a leading negated group whose empty
// match ended the entity replay unblocked.
func (n *Network) PrimeEmptyQuantified(j *JoinNode) {
	if !j.FirstJoin || !j.PatternIsNegated {
		return
	}
	j.LeftMemory.Walk(func(pm *PartialMatch) {
		if !pm.Deleting && pm.Blocker == nil && pm.LeftChildren == nil {
			n.driveQuantified(j, pm)
		}
	})
}
