package facts

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/utils"
)

// Template is a deftemplate: a named slot layout the fact flavour
// matches against. The engine core only needs its identity, its
// constraint metadata, and the layout.
type Template struct {
	constructs.Header

	ID    uint32
	Slots []*TemplateSlot

	slotIndex map[*atoms.Atom]int
}

// TemplateSlot describes one slot of the layout
type TemplateSlot struct {
	Name       *atoms.Atom
	Multifield bool

	// Default fields used when an asserted fact leaves the slot unset
	Default []*atoms.Atom
}

// SlotIndex resolves a slot name to its position
func (t *Template) SlotIndex(name *atoms.Atom) (int, bool) {
	i, ok := t.slotIndex[name]
	return i, ok
}

// SlotNamed returns the slot layout entry by name
func (t *Template) SlotNamed(name string) *TemplateSlot {
	for _, s := range t.Slots {
		if s.Name.Lexeme() == name {
			return s
		}
	}
	return nil
}

// SlotSpec declares one slot while defining a template
type SlotSpec struct {
	Name       string
	Multifield bool
	Default    []*atoms.Atom
}

// DefTemplate defines a template in the current module
func (s *Store) DefTemplate(name string, slots ...SlotSpec) (*Template, error) {
	if existing := s.FindTemplate(s.reg.Symbol(name)); existing != nil {
		return nil, utils.WrapError(utils.ErrParse, "deftemplate "+name+" already defined")
	}
	t := &Template{
		ID:        uint32(len(s.templates)),
		slotIndex: make(map[*atoms.Atom]int),
	}
	t.Name = s.reg.Symbol(name)
	for i, spec := range slots {
		slot := &TemplateSlot{
			Name:       s.reg.Symbol(spec.Name),
			Multifield: spec.Multifield,
			Default:    spec.Default,
		}
		atoms.Retain(slot.Name)
		for _, d := range slot.Default {
			atoms.Retain(d)
		}
		t.Slots = append(t.Slots, slot)
		t.slotIndex[slot.Name] = i
	}
	s.templates = append(s.templates, t)
	s.cons.AddConstruct(s.cons.Current, s.TemplateType, t)
	return t, nil
}

// FindTemplate locates a template by its name atom
func (s *Store) FindTemplate(name *atoms.Atom) *Template {
	for _, t := range s.templates {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TemplateByID returns the template with the given dense id
func (s *Store) TemplateByID(id uint32) *Template {
	if int(id) >= len(s.templates) {
		return nil
	}
	return s.templates[id]
}

// Templates returns the templates in definition order
func (s *Store) Templates() []*Template {
	return s.templates
}
