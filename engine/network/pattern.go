package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// ClassSlot is the pseudo-slot index the first discrimination level
// tests: the entity's class name partitions the child set before any
// real slot is examined.
const ClassSlot = 0xFFFF

// PatternNode is an interior discriminator of the alpha DAG. Nodes are
// shared between every pattern contributing an identical prefix; a new
// chain diverges only where it must.
type PatternNode struct {
	WhichSlot   uint16
	WhichField  uint16
	LeaveFields uint16

	MultifieldNode bool
	EndSlot        bool
	Selector       bool
	FromEnd        bool
	Blocked        bool

	// ConstantSel partitions the child set; the parent resolves it
	// through a hashed lookup instead of a sibling scan.
	ConstantSel *atoms.Atom

	// NetworkTest is an interned intra-pattern test, nil for a
	// structural pass-through level.
	NetworkTest *atoms.Expr

	NextLevel *PatternNode // first child
	LastLevel *PatternNode // parent
	LeftNode  *PatternNode // previous sibling
	RightNode *PatternNode // next sibling

	// Alpha terminals hang off leaves only
	Alpha *AlphaNode

	selectors map[selKey]*PatternNode

	MatchTimeTag uint64
	Initialize   bool
	UseCount     int

	// Transient dense id assigned during binary save
	SaveID uint64
}

type selKey struct {
	slot  uint16
	field uint16
	atom  *atoms.Atom
}

// nodeSpec describes one discrimination level a pattern asks for
type nodeSpec struct {
	slot        uint16
	field       uint16
	leaveFields uint16
	multifield  bool
	endSlot     bool
	fromEnd     bool
	constant    *atoms.Atom
	test        *atoms.Expr // heap-owned; interned on node creation
}

func (s nodeSpec) matches(n *PatternNode) bool {
	return n.WhichSlot == s.slot &&
		n.WhichField == s.field &&
		n.LeaveFields == s.leaveFields &&
		n.MultifieldNode == s.multifield &&
		n.EndSlot == s.endSlot &&
		n.FromEnd == s.fromEnd &&
		n.ConstantSel == s.constant &&
		exprMatches(n.NetworkTest, s.test)
}

func exprMatches(interned, owned *atoms.Expr) bool {
	if interned == nil || owned == nil {
		return interned == nil && owned == nil
	}
	return interned.Equal(owned)
}

// findOrCreateLevel reuses a matching child of parent or grows a new
// one. Constant-selector children are kept last in the sibling order
// so the match loop can stop at the first selector success.
func (n *Network) findOrCreateLevel(parser *PatternParser, parent *PatternNode, spec nodeSpec) *PatternNode {
	if spec.constant != nil {
		key := selKey{slot: spec.slot, field: spec.field, atom: spec.constant}
		if parent.selectors != nil {
			if child, ok := parent.selectors[key]; ok && spec.matches(child) {
				child.UseCount++
				return child
			}
		}
	} else {
		for child := parent.NextLevel; child != nil; child = child.RightNode {
			if !child.Selector && spec.matches(child) {
				child.UseCount++
				return child
			}
		}
	}

	child := &PatternNode{
		WhichSlot:      spec.slot,
		WhichField:     spec.field,
		LeaveFields:    spec.leaveFields,
		MultifieldNode: spec.multifield,
		EndSlot:        spec.endSlot,
		FromEnd:        spec.fromEnd,
		Selector:       spec.constant != nil,
		ConstantSel:    spec.constant,
		LastLevel:      parent,
		UseCount:       1,
		Initialize:     true,
	}
	if spec.test != nil {
		child.NetworkTest = n.Reg.Exprs.Intern(spec.test)
	}
	if spec.constant != nil {
		atoms.Retain(spec.constant)
	}

	if spec.constant != nil {
		// Selectors append at the tail of the sibling list
		if parent.NextLevel == nil {
			parent.NextLevel = child
		} else {
			last := parent.NextLevel
			for last.RightNode != nil {
				last = last.RightNode
			}
			last.RightNode = child
			child.LeftNode = last
		}
		if parent.selectors == nil {
			parent.selectors = make(map[selKey]*PatternNode)
		}
		parent.selectors[selKey{slot: spec.slot, field: spec.field, atom: spec.constant}] = child
	} else {
		// Non-selector nodes go ahead of the selector block
		var insertAfter *PatternNode
		for sib := parent.NextLevel; sib != nil && !sib.Selector; sib = sib.RightNode {
			insertAfter = sib
		}
		if insertAfter == nil {
			child.RightNode = parent.NextLevel
			if parent.NextLevel != nil {
				parent.NextLevel.LeftNode = child
			}
			parent.NextLevel = child
		} else {
			child.RightNode = insertAfter.RightNode
			child.LeftNode = insertAfter
			if insertAfter.RightNode != nil {
				insertAfter.RightNode.LeftNode = child
			}
			insertAfter.RightNode = child
		}
	}

	parser.nodeCount++
	return child
}

// releaseLevel walks up from a leaf removing nodes no rule refers to
// any longer.
func (n *Network) releaseLevel(parser *PatternParser, leaf *PatternNode) {
	node := leaf
	for node != nil && node.LastLevel != nil {
		parent := node.LastLevel
		node.UseCount--
		if node.UseCount > 0 || node.NextLevel != nil || node.Alpha != nil {
			node = parent
			continue
		}

		if parent.NextLevel == node {
			parent.NextLevel = node.RightNode
		}
		if node.LeftNode != nil {
			node.LeftNode.RightNode = node.RightNode
		}
		if node.RightNode != nil {
			node.RightNode.LeftNode = node.LeftNode
		}
		if node.Selector && parent.selectors != nil {
			delete(parent.selectors, selKey{slot: node.WhichSlot, field: node.WhichField, atom: node.ConstantSel})
		}
		if node.ConstantSel != nil {
			atoms.Release(node.ConstantSel)
		}
		if node.NetworkTest != nil {
			n.Reg.Exprs.Release(node.NetworkTest)
			node.NetworkTest = nil
		}
		parser.nodeCount--
		node = parent
	}
}

// evalPatternNode applies one discrimination level to an entity,
// extending the marker list when the node binds a multifield range.
// The returned markers slice aliases the input on failure.
func (n *Network) evalPatternNode(node *PatternNode, ent Entity, markers []SlotMarker) ([]SlotMarker, bool) {
	if node.Blocked {
		return markers, false
	}

	if node.WhichSlot == ClassSlot {
		// Class discrimination level
		if node.ConstantSel == nil {
			return markers, true
		}
		return markers, classNameOf(ent) == node.ConstantSel
	}

	fields := ent.Slot(int(node.WhichSlot))

	if node.MultifieldNode {
		start := int(node.WhichField)
		end := len(fields) - int(node.LeaveFields)
		if end < start {
			return markers, false
		}
		next := make([]SlotMarker, len(markers), len(markers)+1)
		copy(next, markers)
		next = append(next, SlotMarker{Slot: node.WhichSlot, Start: uint16(start), End: uint16(end)})
		markers = next
	} else {
		idx := int(node.WhichField)
		if node.FromEnd {
			idx = len(fields) - 1 - idx
		}
		if idx < 0 || idx >= len(fields) {
			return markers, false
		}
		if node.EndSlot && !node.FromEnd && idx != len(fields)-1 {
			return markers, false
		}
		if node.ConstantSel != nil && fields[idx] != node.ConstantSel {
			return markers, false
		}
	}

	if node.NetworkTest != nil {
		frame := &entityFrame{entity: ent, markers: markers}
		saved := n.Ctx.Push(nil, frame, nil)
		v := atoms.Evaluate(&n.Ctx, node.NetworkTest)
		pass := !n.Ctx.IsFalse(v) || n.Ctx.EvalError
		n.Ctx.Pop(saved)
		if !pass {
			return markers, false
		}
	}
	return markers, true
}

func classNameOf(ent Entity) *atoms.Atom {
	type named interface {
		ClassName() *atoms.Atom
	}
	if nn, ok := ent.(named); ok {
		return nn.ClassName()
	}
	return nil
}
