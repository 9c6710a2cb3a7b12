package facts

import (
	"strings"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/network"
)

// Fact is one asserted instance of a template
type Fact struct {
	core     network.EntityCore
	Template *Template
	ID       uint64

	slots [][]*atoms.Atom

	// Asserted is cleared when retraction begins
	Asserted bool

	// Logical is set when the fact rides a rule basis for support
	Logical bool
}

// Core exposes the entity match bookkeeping
func (f *Fact) Core() *network.EntityCore {
	return &f.core
}

// ClassID is the owning template's dense id
func (f *Fact) ClassID() uint32 {
	return f.Template.ID
}

// ClassName is the owning template's name, used by the class
// discrimination level.
func (f *Fact) ClassName() *atoms.Atom {
	return f.Template.Name
}

// SlotCount returns the slot layout size
func (f *Fact) SlotCount() int {
	return len(f.slots)
}

// Slot returns the fields stored in one slot
func (f *Fact) Slot(slot int) []*atoms.Atom {
	if slot < 0 || slot >= len(f.slots) {
		return nil
	}
	return f.slots[slot]
}

// SetAt stores fields into a slot by position, used by the image
// loader before replaying the fact.
func (f *Fact) SetAt(slot int, fields ...*atoms.Atom) {
	if slot >= 0 && slot < len(f.slots) {
		f.slots[slot] = fields
	}
}

// SlotByName returns the fields of a named slot
func (f *Fact) SlotByName(name string) []*atoms.Atom {
	for i, s := range f.Template.Slots {
		if s.Name.Lexeme() == name {
			return f.slots[i]
		}
	}
	return nil
}

// String renders the fact for tracing
func (f *Fact) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(f.Template.Name.Lexeme())
	for i, s := range f.Template.Slots {
		b.WriteString(" (")
		b.WriteString(s.Name.Lexeme())
		for _, a := range f.slots[i] {
			b.WriteString(" ")
			b.WriteString(a.String())
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

// hash combines the template and slot contents for duplicate checks
func (f *Fact) hash() uint64 {
	h := uint64(f.Template.ID) * 0x9e3779b97f4a7c15
	for _, fields := range f.slots {
		for _, a := range fields {
			h = h*31 + atoms.ValueHash(a)
		}
		h = h*31 + 7
	}
	return h
}

func (f *Fact) equalContents(o *Fact) bool {
	if f.Template != o.Template || len(f.slots) != len(o.slots) {
		return false
	}
	for i := range f.slots {
		if len(f.slots[i]) != len(o.slots[i]) {
			return false
		}
		for j := range f.slots[i] {
			if f.slots[i][j] != o.slots[i][j] {
				return false
			}
		}
	}
	return true
}
