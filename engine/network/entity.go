package network

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// Entity is a matchable object flowing through the network: a fact, an
// instance, anything a registered pattern flavour produces. The core
// only needs its class identity, its slot layout, and a place to hang
// match bookkeeping.
type Entity interface {
	Core() *EntityCore
	ClassID() uint32
	SlotCount() int
	// Slot returns the fields of one slot; a single-field slot has
	// exactly one field.
	Slot(slot int) []*atoms.Atom
}

// EntityCore is the match bookkeeping embedded in every entity
type EntityCore struct {
	TimeTag uint64
	Busy    int

	// Alpha memory entries owned by this entity
	alphaMatches []*PartialMatch

	// Entities logically dependent on this one (truth maintenance)
	Dependents []Entity

	// Set once retraction has started, for idempotence
	Retracted bool
}

// entityFrame adapts an entity (plus the multifield markers discovered
// so far) to the evaluator's Frame interface for pattern-network and
// right-hand join tests.
type entityFrame struct {
	entity  Entity
	markers []SlotMarker
}

// SlotMarker records the half-open field range a multifield variable
// matched inside one slot.
type SlotMarker struct {
	Slot  uint16
	Start uint16
	End   uint16
}

func (f *entityFrame) FrameValue(ref atoms.VarRef) atoms.Value {
	fields := f.entity.Slot(int(ref.Slot))
	if ref.Multi {
		for _, m := range f.markers {
			if m.Slot == ref.Slot {
				seg := make(atoms.Multifield, 0, m.End-m.Start)
				for _, a := range fields[m.Start:m.End] {
					seg = append(seg, a)
				}
				return seg
			}
		}
		return atoms.Multifield(nil)
	}
	idx := int(ref.Field)
	if ref.FromEnd {
		idx = len(fields) - 1 - idx
	}
	if idx < 0 || idx >= len(fields) {
		return nil
	}
	return fields[idx]
}

// matchFrame adapts a partial match to the Frame interface for the
// left side of a join test.
type matchFrame struct {
	pm *PartialMatch
}

func (f *matchFrame) FrameValue(ref atoms.VarRef) atoms.Value {
	if int(ref.Pattern) >= len(f.pm.Binds) {
		return nil
	}
	b := &f.pm.Binds[ref.Pattern]
	if b.Entity == nil {
		return nil
	}
	ef := entityFrame{entity: b.Entity, markers: b.Markers}
	ref.Pattern = 0
	return ef.FrameValue(ref)
}

// rightFrame adapts an arity-1 partial match (an alpha entry or a
// right-memory copy) to the Frame interface. The pattern index of the
// ref is ignored; the single bind is always used.
type rightFrame struct {
	pm *PartialMatch
}

func (f *rightFrame) FrameValue(ref atoms.VarRef) atoms.Value {
	b := f.pm.rightBind()
	if b == nil || b.Entity == nil {
		return nil
	}
	ef := entityFrame{entity: b.Entity, markers: b.Markers}
	return ef.FrameValue(ref)
}
