package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func act(timeTag uint64, complexity uint16, tags ...uint64) *Activation {
	a := &Activation{TimeTag: timeTag}
	a.Rule = &Rule{Complexity: complexity}
	if len(tags) > 0 {
		binds := make([]Bind, 0, len(tags))
		for _, tag := range tags {
			e := &fakeEntity{}
			e.core.TimeTag = tag
			binds = append(binds, Bind{Entity: e})
		}
		a.Basis = &PartialMatch{Binds: binds}
	}
	return a
}

func TestStrategyByName(t *testing.T) {
	s, ok := StrategyByName("breadth")
	assert.True(t, ok)
	assert.Equal(t, StrategyBreadth, s)

	_, ok = StrategyByName("nonsense")
	assert.False(t, ok)
}

func TestCompareLex(t *testing.T) {
	// More recent basis wins
	newer := act(1, 1, 5, 2)
	older := act(2, 1, 3, 2)
	assert.Positive(t, compareLex(newer, older))
	assert.Negative(t, compareLex(older, newer))

	// Equal prefixes: the longer basis wins
	long := act(1, 1, 5, 2, 1)
	short := act(2, 1, 5, 2)
	assert.Positive(t, compareLex(long, short))

	// Full tie breaks on activation time tag
	a := act(3, 1, 5)
	b := act(4, 1, 5)
	assert.Negative(t, compareLex(a, b))
}

func TestCompareMea(t *testing.T) {
	// First pattern recency dominates
	a := act(1, 1, 9, 1)
	b := act(2, 1, 2, 8)
	assert.Positive(t, compareMea(a, b))
}

func TestComplexityOutranks(t *testing.T) {
	complex := act(1, 5)
	simple := act(2, 2)

	assert.True(t, StrategyComplexity.outranks(complex, simple))
	assert.False(t, StrategyComplexity.outranks(simple, complex))

	assert.True(t, StrategySimplicity.outranks(simple, complex))
	assert.False(t, StrategySimplicity.outranks(complex, simple))
}

func TestPlaceAfterDepthBreadth(t *testing.T) {
	g := &SalienceGroup{}
	first := act(1, 1)
	g.First = first
	g.Last = first

	// Depth inserts at the front
	assert.Nil(t, StrategyDepth.placeAfter(g, act(2, 1)))

	// Breadth appends
	assert.Same(t, first, StrategyBreadth.placeAfter(g, act(2, 1)))
}
