package facts

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/network"
)

// Pattern building helpers. The LHS parser is an external
// collaborator; these helpers let it (and the tests standing in for
// it) produce the parsed-pattern tree the network consumes.

// PatternBuilder accumulates slot constraints for one template pattern
type PatternBuilder struct {
	store    *Store
	template *Template
	pattern  *network.ParsedPattern
}

// Pattern starts a parsed pattern over a template
func (s *Store) Pattern(t *Template) *PatternBuilder {
	return &PatternBuilder{
		store:    s,
		template: t,
		pattern: &network.ParsedPattern{
			Parser:    s.Parser,
			ClassName: t.Name,
			ClassID:   t.ID,
			SlotCount: len(t.Slots),
		},
	}
}

// Slot adds field constraints for a named slot
func (b *PatternBuilder) Slot(name string, fields ...*network.ParsedField) *PatternBuilder {
	for i, s := range b.template.Slots {
		if s.Name.Lexeme() == name {
			b.pattern.Slots = append(b.pattern.Slots, &network.ParsedSlot{
				SlotID:     uint16(i),
				Multifield: s.Multifield,
				Fields:     fields,
			})
			break
		}
	}
	return b
}

// Done returns the parsed pattern
func (b *PatternBuilder) Done() *network.ParsedPattern {
	return b.pattern
}

// CE wraps the pattern into a conditional element
func (b *PatternBuilder) CE() *network.ParsedCE {
	return network.PatternCE(b.pattern)
}

// Const constrains a field to a constant
func Const(a *atoms.Atom) *network.ParsedField {
	return &network.ParsedField{Constant: a}
}

// Var binds or tests a single-field variable
func Var(sym *atoms.Atom) *network.ParsedField {
	return &network.ParsedField{Variable: sym}
}

// MVar binds or tests a multifield variable
func MVar(sym *atoms.Atom) *network.ParsedField {
	return &network.ParsedField{Variable: sym, Multi: true}
}

// Wild matches any single field
func Wild() *network.ParsedField {
	return &network.ParsedField{}
}
