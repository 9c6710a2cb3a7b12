package network

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// AlphaNode is a leaf terminal of the pattern DAG. It owns the alpha
// memory for one {class bitmap, slot bitmap, right-hash expression}
// triple and links back to the per-class registries so a changed
// entity can locate its relevant terminals quickly.
type AlphaNode struct {
	ClassBitmap *atoms.Atom // serialized class bitset
	SlotBitmap  *atoms.Atom // nil when the pattern constrains no slot

	classBits *bitset.BitSet
	slotBits  *bitset.BitSet

	RightHash *atoms.Expr

	PatternNode  *PatternNode
	NextInGroup  *AlphaNode
	NextTerminal *AlphaNode

	Memory *BetaMemory
	Joins  []*JoinNode

	Parser       *PatternParser
	UseCount     int
	Initialize   bool
	MatchTimeTag uint64

	// Transient dense id assigned during binary save
	SaveID uint64
}

// ClassBits exposes the runtime class bitset
func (a *AlphaNode) ClassBits() *bitset.BitSet {
	return a.classBits
}

// bitsetAtom interns a bitset's words as a bitmap atom so the class
// and slot masks ride the bitmap table through a binary save.
func bitsetAtom(reg *atoms.Registry, bs *bitset.BitSet) *atoms.Atom {
	words := bs.Bytes()
	payload := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(payload[i*8:], w)
	}
	return reg.Bitmap(payload)
}

// bitsetFromAtom rebuilds the runtime bitset from a bitmap payload
func bitsetFromAtom(a *atoms.Atom) *bitset.BitSet {
	payload := a.Bytes()
	words := make([]uint64, len(payload)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(payload[i*8:])
	}
	return bitset.From(words)
}

// classKey is the bloom prefilter key for one (parser, class) pair
func classKey(parser *PatternParser, classID uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], classID)
	binary.LittleEndian.PutUint32(b[4:8], uint32(parser.index))
	return b
}

// findOrCreateTerminal reuses a terminal with identical bitmaps and
// right hash under the leaf, creating and registering a new one
// otherwise.
func (n *Network) findOrCreateTerminal(parser *PatternParser, leaf *PatternNode, classBits, slotBits *bitset.BitSet, rightHash *atoms.Expr) *AlphaNode {
	var hashed *atoms.Expr
	if rightHash != nil {
		hashed = n.Reg.Exprs.Intern(rightHash)
	}

	for a := leaf.Alpha; a != nil; a = a.NextInGroup {
		if a.classBits.Equal(classBits) && slotBitsEqual(a.slotBits, slotBits) && a.RightHash == hashed {
			if hashed != nil {
				n.Reg.Exprs.Release(hashed)
			}
			a.UseCount++
			return a
		}
	}

	a := &AlphaNode{
		classBits:   classBits,
		slotBits:    slotBits,
		ClassBitmap: bitsetAtom(n.Reg, classBits),
		RightHash:   hashed,
		PatternNode: leaf,
		Parser:      parser,
		UseCount:    1,
		Initialize:  true,
		Memory:      NewBetaMemory(hashed != nil),
	}
	atoms.Retain(a.ClassBitmap)
	if slotBits != nil {
		a.SlotBitmap = bitsetAtom(n.Reg, slotBits)
		atoms.Retain(a.SlotBitmap)
	}

	a.NextInGroup = leaf.Alpha
	leaf.Alpha = a
	a.NextTerminal = parser.Terminals
	parser.Terminals = a

	// Per-class registry and the bloom prefilter
	for i, ok := classBits.NextSet(0); ok; i, ok = classBits.NextSet(i + 1) {
		id := uint32(i)
		n.ClassTerminals[id] = append(n.ClassTerminals[id], a)
		n.classFilter.Add(classKey(parser, id))
	}
	return a
}

func slotBitsEqual(a, b *bitset.BitSet) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

// detachTerminal clears the terminal's memory, unlinks it from the
// per-class lists, then walks up the DAG removing childless levels.
func (n *Network) detachTerminal(a *AlphaNode) {
	a.UseCount--
	if a.UseCount > 0 {
		return
	}

	// Retract everything the terminal still holds
	a.Memory.Walk(func(pm *PartialMatch) {
		pm.Deleting = true
	})
	a.Memory.Walk(func(pm *PartialMatch) {
		if pm.RightParent == nil && len(pm.Binds) == 1 && pm.Binds[0].Entity != nil {
			core := pm.Binds[0].Entity.Core()
			core.removeAlphaMatch(pm)
		}
	})
	a.Memory = NewBetaMemory(a.RightHash != nil)

	for i, ok := a.classBits.NextSet(0); ok; i, ok = a.classBits.NextSet(i + 1) {
		id := uint32(i)
		list := n.ClassTerminals[id]
		for j, cand := range list {
			if cand == a {
				n.ClassTerminals[id] = append(list[:j], list[j+1:]...)
				break
			}
		}
		if len(n.ClassTerminals[id]) == 0 {
			delete(n.ClassTerminals, id)
		}
	}

	// Unlink from the leaf's group
	leaf := a.PatternNode
	if leaf.Alpha == a {
		leaf.Alpha = a.NextInGroup
	} else {
		for g := leaf.Alpha; g != nil; g = g.NextInGroup {
			if g.NextInGroup == a {
				g.NextInGroup = a.NextInGroup
				break
			}
		}
	}

	// Unlink from the parser's terminal list
	if a.Parser.Terminals == a {
		a.Parser.Terminals = a.NextTerminal
	} else {
		for t := a.Parser.Terminals; t != nil; t = t.NextTerminal {
			if t.NextTerminal == a {
				t.NextTerminal = a.NextTerminal
				break
			}
		}
	}

	atoms.Release(a.ClassBitmap)
	if a.SlotBitmap != nil {
		atoms.Release(a.SlotBitmap)
	}
	if a.RightHash != nil {
		n.Reg.Exprs.Release(a.RightHash)
	}

	n.releaseLevel(a.Parser, leaf)
}

func (c *EntityCore) removeAlphaMatch(pm *PartialMatch) {
	for i, cand := range c.alphaMatches {
		if cand == pm {
			c.alphaMatches = append(c.alphaMatches[:i], c.alphaMatches[i+1:]...)
			return
		}
	}
}

// relevantTerminals returns the terminals a class can reach, guarded
// by the bloom prefilter.
func (n *Network) relevantTerminals(parser *PatternParser, classID uint32) []*AlphaNode {
	if !n.classFilter.Test(classKey(parser, classID)) {
		return nil
	}
	list := n.ClassTerminals[classID]
	out := list[:0:0]
	for _, a := range list {
		if a.Parser == parser {
			out = append(out, a)
		}
	}
	return out
}

// driveEntityToTerminal walks one terminal's pattern-node ancestors
// top-down, evaluating each level against the entity. On success the
// collected markers describe every multifield binding.
func (n *Network) driveEntityToTerminal(a *AlphaNode, ent Entity) ([]SlotMarker, bool) {
	// Collect the root-to-leaf path
	var path []*PatternNode
	for node := a.PatternNode; node != nil && node.LastLevel != nil; node = node.LastLevel {
		path = append(path, node)
	}

	var markers []SlotMarker
	for i := len(path) - 1; i >= 0; i-- {
		var ok bool
		markers, ok = n.evalPatternNode(path[i], ent, markers)
		if !ok {
			return nil, false
		}
	}
	return markers, true
}

// insertAlphaMatch records the entity in the terminal's memory and
// hands the new match to every join using this terminal as its right
// input.
func (n *Network) insertAlphaMatch(a *AlphaNode, ent Entity, markers []SlotMarker) {
	pm := n.pool.get()
	pm.Owner = a
	pm.RHSMemory = true
	pm.Binds = append(pm.Binds, Bind{Entity: ent, Markers: markers})
	frame := &rightFrame{pm: pm}
	pm.Hash = hashExprChain(&n.Ctx, a.RightHash, nil, frame)

	a.Memory.Insert(pm)
	a.Memory.MaybeResize(n.ResizingAllowed)
	ent.Core().alphaMatches = append(ent.Core().alphaMatches, pm)

	for _, join := range a.Joins {
		if n.IncrementalResetInProgress && !join.Initialize {
			continue
		}
		n.NetworkAssertRight(pm, join)
	}
}
