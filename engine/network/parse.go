package network

import (
	"sort"

	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// PatternParser is a registered pattern flavour: facts, instances,
// whatever a subsystem teaches the network to match. The network is
// polymorphic over the registered set; parsers are queried in
// priority order and the first recognizer wins.
type PatternParser struct {
	Name     *atoms.Atom
	Priority int

	// Recognize claims a pattern head name for this flavour
	Recognize func(name *atoms.Atom) bool

	// IncrementalReset walks the flavour's entity list and re-drives
	// each entity through the pattern network while a new rule's nodes
	// carry their initialize marks.
	IncrementalReset func()

	// PrintEntity renders an entity for tracing
	PrintEntity func(Entity) string

	Root      *PatternNode
	Terminals *AlphaNode

	index     int
	nodeCount int
}

// NodeCount reports the live interior nodes of the flavour's DAG
func (p *PatternParser) NodeCount() int {
	return p.nodeCount
}

// RegisterParser adds a pattern flavour. The flavour's name atom is
// reserved and may not be used as a user symbol in pattern heads.
func (n *Network) RegisterParser(p *PatternParser) {
	p.index = len(n.Parsers)
	p.Root = &PatternNode{}
	atoms.Retain(p.Name)
	n.Parsers = append(n.Parsers, p)
	sort.SliceStable(n.Parsers, func(i, j int) bool {
		return n.Parsers[i].Priority > n.Parsers[j].Priority
	})
}

// ParserFor resolves the flavour claiming a pattern head name
func (n *Network) ParserFor(name *atoms.Atom) *PatternParser {
	for _, p := range n.Parsers {
		if p.Recognize != nil && p.Recognize(name) {
			return p
		}
	}
	return nil
}

// CEKind tags one conditional element of a parsed LHS
type CEKind uint8

const (
	CEPattern CEKind = iota
	CENot
	CEExists
	CETest
	CEAnd
)

// ParsedCE is one element of the parsed-pattern tree the external LHS
// parser hands the core.
type ParsedCE struct {
	Kind     CEKind
	Pattern  *ParsedPattern
	Test     *atoms.Expr // CETest: predicate with ExVariable leaves
	Children []*ParsedCE // CENot / CEExists / CEAnd bodies
}

// ParsedPattern describes one pattern CE over a class's slot layout
type ParsedPattern struct {
	Parser    *PatternParser
	ClassName *atoms.Atom
	ClassID   uint32
	SlotCount int
	Slots     []*ParsedSlot
}

// ParsedSlot constrains one slot of the pattern
type ParsedSlot struct {
	SlotID     uint16
	Multifield bool
	Fields     []*ParsedField
}

// ParsedField is a single field constraint: a constant, a variable, or
// a multifield variable. An anonymous wildcard leaves all three zero.
type ParsedField struct {
	Constant *atoms.Atom
	Variable *atoms.Atom
	Multi    bool
}

// RuleDef is the compiled input to rule construction: the external
// parser's product plus the rule's properties.
type RuleDef struct {
	Name            string
	Salience        int
	DynamicSalience *atoms.Expr
	Actions         *atoms.Expr
	LHS             []*ParsedCE

	// Disjuncts beyond the first or-branch, each a complete LHS
	OtherDisjuncts [][]*ParsedCE
}

// Convenience constructors used by parsers and tests

// PatternCE wraps a pattern into a conditional element
func PatternCE(p *ParsedPattern) *ParsedCE {
	return &ParsedCE{Kind: CEPattern, Pattern: p}
}

// NotCE negates a group of conditional elements
func NotCE(children ...*ParsedCE) *ParsedCE {
	return &ParsedCE{Kind: CENot, Children: children}
}

// ExistsCE requires at least one match for the group
func ExistsCE(children ...*ParsedCE) *ParsedCE {
	return &ParsedCE{Kind: CEExists, Children: children}
}

// TestCE gates on a predicate over previously bound variables
func TestCE(test *atoms.Expr) *ParsedCE {
	return &ParsedCE{Kind: CETest, Test: test}
}
