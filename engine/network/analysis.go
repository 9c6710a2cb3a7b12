package network

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/utils"
)

// LHS analysis. The parsed-pattern tree arrives with named variables;
// analysis assigns pattern positions, resolves every variable
// occurrence to a network fetch, splits constraints into intra-pattern
// tests, join tests, and hash pairs, and tracks not/exists nesting for
// correct variable scoping.

type varBinding struct {
	pattern uint16
	slot    uint16
	field   uint16
	fromEnd bool
	multi   bool
	depth   int
}

// compiledElem is one join-producing element of the analyzed LHS
type compiledElem struct {
	negated bool
	exists  bool

	pattern *compiledPattern
	group   []*compiledElem

	joinTest      *atoms.Expr // heap-owned, interned at join creation
	secondaryTest *atoms.Expr // gate on quantified emission
	leftHash      *atoms.Expr
	rightHash     *atoms.Expr
}

// compiledPattern is a pattern lowered to discrimination levels
type compiledPattern struct {
	parser    *PatternParser
	classID   uint32
	className *atoms.Atom
	specs     []nodeSpec
	slotBits  *bitset.BitSet
}

type analyzer struct {
	n          *Network
	vars       map[*atoms.Atom]*varBinding
	patternIdx uint16
	depth      int
	complexity uint16
}

func newAnalyzer(n *Network) *analyzer {
	return &analyzer{
		n:    n,
		vars: make(map[*atoms.Atom]*varBinding),
	}
}

// analyze lowers one disjunct's CE list to join-chain elements
func (a *analyzer) analyze(lhs []*ParsedCE) ([]*compiledElem, error) {
	if len(lhs) == 0 {
		return nil, utils.WrapError(utils.ErrParse, "empty rule left-hand side")
	}
	elems, err := a.analyzeGroup(lhs)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, utils.WrapError(utils.ErrParse, "left-hand side has no pattern elements")
	}
	return elems, nil
}

func (a *analyzer) analyzeGroup(ces []*ParsedCE) ([]*compiledElem, error) {
	var out []*compiledElem
	for _, ce := range ces {
		switch ce.Kind {
		case CEPattern:
			elem, err := a.analyzePattern(ce.Pattern, false, false)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)

		case CEAnd:
			inner, err := a.analyzeGroup(ce.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)

		case CENot:
			elem, err := a.analyzeQuantified(ce.Children, true, false)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)

		case CEExists:
			elem, err := a.analyzeQuantified(ce.Children, false, true)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)

		case CETest:
			if len(out) == 0 {
				return nil, utils.WrapError(utils.ErrConstraintViolation,
					"test CE cannot precede the first pattern")
			}
			last := out[len(out)-1]
			if last.pattern == nil || last.negated || last.exists {
				// After a quantified element the predicate becomes the
				// join's secondary test, run once membership is settled
				resolved, err := a.resolveTest(ce.Test, nil)
				if err != nil {
					return nil, err
				}
				last.secondaryTest = andMerge(a.n.Reg, last.secondaryTest, resolved)
			} else {
				resolved, err := a.resolveTest(ce.Test, last)
				if err != nil {
					return nil, err
				}
				last.joinTest = andMerge(a.n.Reg, last.joinTest, resolved)
			}
			a.complexity++

		default:
			return nil, utils.WrapError(utils.ErrParse, "unknown conditional element")
		}
	}
	return out, nil
}

// analyzeQuantified lowers a not/exists body. A single pattern becomes
// a flagged join; a larger body becomes a join-from-the-right group.
// Variables bound inside go out of scope when the group closes.
func (a *analyzer) analyzeQuantified(children []*ParsedCE, negated, exists bool) (*compiledElem, error) {
	if len(children) == 0 {
		return nil, utils.WrapError(utils.ErrParse, "empty not/exists group")
	}

	a.depth++
	savedIdx := a.patternIdx

	var elem *compiledElem
	var err error
	if len(children) == 1 && children[0].Kind == CEPattern {
		elem, err = a.analyzePattern(children[0].Pattern, negated, exists)
	} else {
		var inner []*compiledElem
		inner, err = a.analyzeGroup(children)
		if err == nil && len(inner) == 0 {
			err = utils.WrapError(utils.ErrParse, "not/exists group has no patterns")
		}
		if err == nil {
			elem = &compiledElem{negated: negated, exists: exists, group: inner}
		}
	}

	// Close the nand frame: inner bindings leave scope, the group
	// occupies a single binding position in the outer chain.
	a.depth--
	for name, b := range a.vars {
		if b.depth > a.depth {
			delete(a.vars, name)
		}
	}
	a.patternIdx = savedIdx + 1

	if err != nil {
		return nil, err
	}
	return elem, nil
}

// analyzePattern lowers one pattern CE to discrimination levels and
// join constraints.
func (a *analyzer) analyzePattern(pp *ParsedPattern, negated, exists bool) (*compiledElem, error) {
	if pp == nil || pp.Parser == nil {
		return nil, utils.WrapError(utils.ErrParse, "pattern without a registered flavour")
	}
	idx := a.patternIdx
	a.patternIdx++

	cp := &compiledPattern{
		parser:    pp.Parser,
		classID:   pp.ClassID,
		className: pp.ClassName,
		slotBits:  bitset.New(uint(pp.SlotCount)),
	}
	elem := &compiledElem{negated: negated, exists: exists, pattern: cp}

	// Class discrimination comes first
	cp.specs = append(cp.specs, nodeSpec{slot: ClassSlot, constant: pp.ClassName})

	for _, slot := range pp.Slots {
		if err := a.analyzeSlot(cp, elem, idx, slot); err != nil {
			return nil, utils.WrapError(err, fmt.Sprintf("pattern %d slot %d", idx, slot.SlotID))
		}
		cp.slotBits.Set(uint(slot.SlotID))
	}

	a.complexity += uint16(len(cp.specs))
	return elem, nil
}

func (a *analyzer) analyzeSlot(cp *compiledPattern, elem *compiledElem, idx uint16, slot *ParsedSlot) error {
	multiSeen := false
	multiAt := 0
	for i, f := range slot.Fields {
		if f.Multi {
			if multiSeen {
				return utils.WrapError(utils.ErrConstraintViolation,
					"more than one multifield variable in a slot")
			}
			multiSeen = true
			multiAt = i
		}
	}
	if multiSeen && !slot.Multifield {
		return utils.WrapError(utils.ErrConstraintViolation,
			"multifield variable in a single-field slot")
	}

	for i, f := range slot.Fields {
		spec := nodeSpec{slot: slot.SlotID}
		ref := atoms.VarRef{Slot: slot.SlotID}

		switch {
		case f.Multi:
			spec.multifield = true
			spec.field = uint16(i)
			spec.leaveFields = uint16(len(slot.Fields) - 1 - i)
			ref.Multi = true
			ref.Field = uint16(i)
		case multiSeen && i > multiAt:
			spec.fromEnd = true
			spec.field = uint16(len(slot.Fields) - 1 - i)
			ref.FromEnd = true
			ref.Field = spec.field
		default:
			spec.field = uint16(i)
			ref.Field = uint16(i)
		}
		if i == len(slot.Fields)-1 && !f.Multi {
			spec.endSlot = true
		}
		if !slot.Multifield && len(slot.Fields) == 1 {
			spec.endSlot = true
		}

		switch {
		case f.Constant != nil:
			spec.constant = f.Constant

		case f.Variable != nil:
			binding, bound := a.vars[f.Variable]
			switch {
			case !bound:
				a.vars[f.Variable] = &varBinding{
					pattern: idx,
					slot:    slot.SlotID,
					field:   ref.Field,
					fromEnd: ref.FromEnd,
					multi:   ref.Multi,
					depth:   a.depth,
				}

			case binding.pattern == idx:
				// Intra-pattern repeat: a pattern-network equality
				first := atoms.VarRef{
					Slot:    binding.slot,
					Field:   binding.field,
					FromEnd: binding.fromEnd,
					Multi:   binding.multi,
				}
				spec.test = atoms.Call(a.n.Reg.Function("eq"),
					atoms.PNVar(a.n.Reg, ref),
					atoms.PNVar(a.n.Reg, first))
				a.complexity++

			default:
				// Inter-pattern repeat: a join equality plus the
				// matched hash pair for the beta memories
				if binding.multi != ref.Multi {
					return utils.WrapError(utils.ErrConstraintViolation,
						"variable bound to both a field and a multifield")
				}
				leftRef := atoms.VarRef{
					Pattern: binding.pattern,
					Slot:    binding.slot,
					Field:   binding.field,
					FromEnd: binding.fromEnd,
					Multi:   binding.multi,
				}
				rightRef := ref
				rightRef.FromRight = true
				elem.joinTest = andMerge(a.n.Reg, elem.joinTest,
					atoms.Call(a.n.Reg.Function("eq"),
						atoms.JNVar(a.n.Reg, leftRef),
						atoms.JNVar(a.n.Reg, rightRef)))
				appendChain(&elem.leftHash, atoms.JNVar(a.n.Reg, leftRef))
				appendChain(&elem.rightHash, atoms.JNVar(a.n.Reg, rightRef))
				a.complexity++
			}
		}

		cp.specs = append(cp.specs, spec)
	}
	return nil
}

// resolveTest rewrites a test-CE predicate, replacing variable leaves
// with join-network fetches. When the test rides a pattern element's
// join, references to that pattern resolve against the right frame;
// a secondary test sees only the left frame.
func (a *analyzer) resolveTest(test *atoms.Expr, elem *compiledElem) (*atoms.Expr, error) {
	if test == nil {
		return nil, utils.WrapError(utils.ErrParse, "test CE without an expression")
	}
	elemIdx := uint16(0xFFFF)
	if elem != nil {
		elemIdx = a.patternIdx - 1
	}
	resolved := test.Copy()
	if err := a.substituteVars(resolved, elemIdx); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (a *analyzer) substituteVars(e *atoms.Expr, elemIdx uint16) error {
	if e == nil {
		return nil
	}
	if e.Kind == atoms.ExVariable {
		binding, bound := a.vars[e.Atom]
		if !bound {
			return utils.WrapError(utils.ErrUnboundVariable,
				fmt.Sprintf("variable ?%s referenced before binding", e.Atom.Lexeme()))
		}
		ref := atoms.VarRef{
			Pattern: binding.pattern,
			Slot:    binding.slot,
			Field:   binding.field,
			FromEnd: binding.fromEnd,
			Multi:   binding.multi,
		}
		if binding.pattern == elemIdx {
			ref.FromRight = true
		}
		next := e.Next
		*e = *atoms.JNVar(a.n.Reg, ref)
		e.Next = next
		return a.substituteVars(e.Next, elemIdx)
	}
	if err := a.substituteVars(e.Arg, elemIdx); err != nil {
		return err
	}
	return a.substituteVars(e.Next, elemIdx)
}

// andMerge combines two join tests under a single and-call
func andMerge(reg *atoms.Registry, existing, extra *atoms.Expr) *atoms.Expr {
	if existing == nil {
		return extra
	}
	if extra == nil {
		return existing
	}
	if existing.Kind == atoms.ExFnCall && existing.Fn == reg.Function("and") {
		existing.AppendArg(extra)
		return existing
	}
	return atoms.Call(reg.Function("and"), existing, extra)
}

// appendChain adds an expression to a sibling-linked hash chain
func appendChain(chain **atoms.Expr, e *atoms.Expr) {
	if *chain == nil {
		*chain = e
		return
	}
	last := *chain
	for last.Next != nil {
		last = last.Next
	}
	last.Next = e
}
