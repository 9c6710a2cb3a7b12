package network

import "sort"

// Strategy selects the secondary ordering inside one salience group
type Strategy uint8

const (
	StrategyDepth Strategy = iota
	StrategyBreadth
	StrategyLex
	StrategyMea
	StrategyComplexity
	StrategySimplicity
	StrategyRandom
)

var strategyNames = map[Strategy]string{
	StrategyDepth:      "depth",
	StrategyBreadth:    "breadth",
	StrategyLex:        "lex",
	StrategyMea:        "mea",
	StrategyComplexity: "complexity",
	StrategySimplicity: "simplicity",
	StrategyRandom:     "random",
}

func (s Strategy) String() string {
	return strategyNames[s]
}

// StrategyByName resolves a strategy from its configuration name
func StrategyByName(name string) (Strategy, bool) {
	for s, n := range strategyNames {
		if n == name {
			return s, true
		}
	}
	return StrategyDepth, false
}

// placeAfter returns the activation the newcomer is inserted after,
// nil meaning the front of the group.
func (s Strategy) placeAfter(g *SalienceGroup, act *Activation) *Activation {
	switch s {
	case StrategyDepth:
		return nil
	case StrategyBreadth:
		return g.Last
	}

	// Comparison-based strategies walk to the first existing
	// activation the newcomer outranks.
	for e := g.First; e != nil; e = e.Next {
		if s.outranks(act, e) {
			return e.Prev
		}
	}
	return g.Last
}

// outranks reports whether a fires before b under the strategy
func (s Strategy) outranks(a, b *Activation) bool {
	switch s {
	case StrategyLex:
		return compareLex(a, b) > 0
	case StrategyMea:
		return compareMea(a, b) > 0
	case StrategyComplexity:
		if a.Rule.Complexity != b.Rule.Complexity {
			return a.Rule.Complexity > b.Rule.Complexity
		}
		return a.TimeTag > b.TimeTag
	case StrategySimplicity:
		if a.Rule.Complexity != b.Rule.Complexity {
			return a.Rule.Complexity < b.Rule.Complexity
		}
		return a.TimeTag > b.TimeTag
	case StrategyRandom:
		return a.RandomID > b.RandomID
	}
	return false
}

// basisTimeTags collects the entity time tags of the basis, most
// recent first. Not-CE slots contribute nothing.
func basisTimeTags(act *Activation) []uint64 {
	if act.Basis == nil {
		return nil
	}
	tags := make([]uint64, 0, len(act.Basis.Binds))
	for _, b := range act.Basis.Binds {
		if b.Entity != nil {
			tags = append(tags, b.Entity.Core().TimeTag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] > tags[j] })
	return tags
}

// compareLex orders by recency of the sorted time tags, the OPS5 LEX
// rule: compare element-wise, longer basis wins ties, activation time
// tag breaks full ties.
func compareLex(a, b *Activation) int {
	at := basisTimeTags(a)
	bt := basisTimeTags(b)
	for i := 0; i < len(at) && i < len(bt); i++ {
		if at[i] != bt[i] {
			if at[i] > bt[i] {
				return 1
			}
			return -1
		}
	}
	if len(at) != len(bt) {
		if len(at) > len(bt) {
			return 1
		}
		return -1
	}
	if a.TimeTag != b.TimeTag {
		if a.TimeTag > b.TimeTag {
			return 1
		}
		return -1
	}
	return 0
}

// compareMea orders first by the recency of the first pattern's
// binding, then falls back to LEX.
func compareMea(a, b *Activation) int {
	af := firstTag(a)
	bf := firstTag(b)
	if af != bf {
		if af > bf {
			return 1
		}
		return -1
	}
	return compareLex(a, b)
}

func firstTag(act *Activation) uint64 {
	if act.Basis == nil {
		return 0
	}
	for _, b := range act.Basis.Binds {
		if b.Entity != nil {
			return b.Entity.Core().TimeTag
		}
	}
	return 0
}
