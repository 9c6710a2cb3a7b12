package facts

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

// Store owns the asserted fact list and registers the "facts" pattern
// flavour with the network.
type Store struct {
	reg  *atoms.Registry
	cons *constructs.Registry
	net  *network.Network

	Parser       *network.PatternParser
	TemplateType *constructs.ItemType

	templates []*Template

	facts    []*Fact // assertion order
	byHash   map[uint64][]*Fact
	nextFact uint64

	logger *utils.Logger
}

// NewStore creates the fact store and registers its flavour
func NewStore(reg *atoms.Registry, cons *constructs.Registry, net *network.Network, logger *utils.Logger) *Store {
	if logger == nil {
		logger = utils.DefaultLogger("facts")
	}
	s := &Store{
		reg:    reg,
		cons:   cons,
		net:    net,
		byHash: make(map[uint64][]*Fact),
		logger: logger,
	}
	s.TemplateType = cons.RegisterItemType("deftemplate")
	s.Parser = &network.PatternParser{
		Name:     reg.Symbol("facts"),
		Priority: 50,
		Recognize: func(name *atoms.Atom) bool {
			return s.FindTemplate(name) != nil
		},
		IncrementalReset: s.incrementalReset,
		PrintEntity: func(e network.Entity) string {
			if f, ok := e.(*Fact); ok {
				return f.String()
			}
			return "<non-fact entity>"
		},
	}
	net.RegisterParser(s.Parser)
	net.LogicalRetract = func(e network.Entity) {
		if f, ok := e.(*Fact); ok {
			_ = s.Retract(f)
		}
	}
	return s
}

// NewFact builds an unasserted fact over a template, slots primed
// with their defaults.
func (s *Store) NewFact(t *Template) *Fact {
	f := &Fact{Template: t, slots: make([][]*atoms.Atom, len(t.Slots))}
	for i, slot := range t.Slots {
		if len(slot.Default) > 0 {
			f.slots[i] = append([]*atoms.Atom(nil), slot.Default...)
		}
	}
	return f
}

// Set stores fields into a named slot of an unasserted fact
func (f *Fact) Set(name string, fields ...*atoms.Atom) *Fact {
	for i, s := range f.Template.Slots {
		if s.Name.Lexeme() == name {
			f.slots[i] = fields
			break
		}
	}
	return f
}

// Assert drives a fact through the network. Asserting a duplicate of
// a live fact returns the existing fact untouched.
func (s *Store) Assert(f *Fact) (*Fact, error) {
	if f.Asserted {
		return f, nil
	}
	h := f.hash()
	for _, cand := range s.byHash[h] {
		if cand.Asserted && cand.equalContents(f) {
			return cand, nil
		}
	}

	s.nextFact++
	f.ID = s.nextFact
	f.Asserted = true
	for _, fields := range f.slots {
		for _, a := range fields {
			atoms.Retain(a)
		}
	}
	s.facts = append(s.facts, f)
	s.byHash[h] = append(s.byHash[h], f)

	s.net.AssertEntity(s.Parser, f)
	return f, nil
}

// AssertLogical asserts a fact whose existence depends on the given
// rule basis; the fact is retracted when the basis dissolves.
func (s *Store) AssertLogical(f *Fact, basis *network.PartialMatch) (*Fact, error) {
	asserted, err := s.Assert(f)
	if err != nil {
		return nil, err
	}
	if basis != nil && asserted == f {
		f.Logical = true
		basis.LogicalDependents = append(basis.LogicalDependents, f)
	}
	return asserted, nil
}

// Retract removes a fact from the engine. Retracting twice is a
// no-op.
func (s *Store) Retract(f *Fact) error {
	if !f.Asserted {
		return nil
	}
	f.Asserted = false

	s.net.RetractEntity(f)

	h := f.hash()
	chain := s.byHash[h]
	for i, cand := range chain {
		if cand == f {
			s.byHash[h] = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	for i, cand := range s.facts {
		if cand == f {
			s.facts = append(s.facts[:i], s.facts[i+1:]...)
			break
		}
	}
	for _, fields := range f.slots {
		for _, a := range fields {
			atoms.Release(a)
		}
	}
	return nil
}

// RetractAll clears the fact list in reverse assertion order
func (s *Store) RetractAll() {
	for len(s.facts) > 0 {
		_ = s.Retract(s.facts[len(s.facts)-1])
	}
}

// Facts snapshots the live facts in assertion order
func (s *Store) Facts() []*Fact {
	out := make([]*Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Count returns the number of asserted facts
func (s *Store) Count() int {
	return len(s.facts)
}

// ClearTemplates forgets every template definition. Facts must have
// been retracted first; the binary loader and Env.Clear call this in
// reverse dependency order.
func (s *Store) ClearTemplates() {
	for _, t := range s.templates {
		s.cons.RemoveConstruct(s.TemplateType, t)
		for _, slot := range t.Slots {
			atoms.Release(slot.Name)
			for _, d := range slot.Default {
				atoms.Release(d)
			}
		}
	}
	s.templates = nil
}

// incrementalReset re-drives every fact through the pattern network
// while a new rule's nodes carry initialize marks.
func (s *Store) incrementalReset() {
	for _, f := range s.facts {
		s.net.AssertEntity(s.Parser, f)
	}
}
