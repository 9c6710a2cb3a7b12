package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/network"
)

func newStore(t *testing.T) (*Store, *atoms.Registry) {
	t.Helper()
	reg := atoms.NewRegistry()
	cons := constructs.NewRegistry(reg, nil)
	net := network.New(reg, cons, nil)
	return NewStore(reg, cons, net, nil), reg
}

func TestDefTemplate(t *testing.T) {
	s, reg := newStore(t)

	tpl, err := s.DefTemplate("order",
		SlotSpec{Name: "id"},
		SlotSpec{Name: "items", Multifield: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tpl.ID)
	assert.Len(t, tpl.Slots, 2)
	assert.True(t, tpl.Slots[1].Multifield)

	// Redefinition is rejected
	_, err = s.DefTemplate("order")
	assert.Error(t, err)

	// Lookup by name atom
	assert.Same(t, tpl, s.FindTemplate(reg.Symbol("order")))
	assert.Nil(t, s.FindTemplate(reg.Symbol("missing")))
	assert.Same(t, tpl, s.TemplateByID(0))
}

func TestAssertRetract(t *testing.T) {
	s, reg := newStore(t)
	tpl, err := s.DefTemplate("tag", SlotSpec{Name: "v"})
	require.NoError(t, err)

	f, err := s.Assert(s.NewFact(tpl).Set("v", reg.Symbol("x")))
	require.NoError(t, err)
	assert.True(t, f.Asserted)
	assert.Equal(t, 1, s.Count())
	assert.Positive(t, reg.Symbol("x").Count())

	// A duplicate assert returns the existing fact
	dup, err := s.Assert(s.NewFact(tpl).Set("v", reg.Symbol("x")))
	require.NoError(t, err)
	assert.Same(t, f, dup)
	assert.Equal(t, 1, s.Count())

	require.NoError(t, s.Retract(f))
	assert.Equal(t, 0, s.Count())
	assert.False(t, f.Asserted)
	assert.Equal(t, 0, reg.Symbol("x").Count())

	// Retract is idempotent
	require.NoError(t, s.Retract(f))
}

func TestTemplateDefaults(t *testing.T) {
	s, reg := newStore(t)
	tpl, err := s.DefTemplate("conn",
		SlotSpec{Name: "state", Default: []*atoms.Atom{reg.Symbol("idle")}})
	require.NoError(t, err)

	f := s.NewFact(tpl)
	assert.Equal(t, []*atoms.Atom{reg.Symbol("idle")}, f.SlotByName("state"))

	f.Set("state", reg.Symbol("open"))
	assert.Equal(t, []*atoms.Atom{reg.Symbol("open")}, f.SlotByName("state"))
}

func TestFactString(t *testing.T) {
	s, reg := newStore(t)
	tpl, err := s.DefTemplate("point", SlotSpec{Name: "x"}, SlotSpec{Name: "y"})
	require.NoError(t, err)

	f := s.NewFact(tpl).
		Set("x", reg.Integer(3)).
		Set("y", reg.Integer(4))
	assert.Equal(t, "(point (x 3) (y 4))", f.String())
}

func TestRetractAllReverseOrder(t *testing.T) {
	s, reg := newStore(t)
	tpl, err := s.DefTemplate("n", SlotSpec{Name: "v"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.Assert(s.NewFact(tpl).Set("v", reg.Integer(int64(i))))
		require.NoError(t, err)
	}
	s.RetractAll()
	assert.Equal(t, 0, s.Count())
}

func TestClearTemplates(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.DefTemplate("gone", SlotSpec{Name: "v"})
	require.NoError(t, err)

	s.ClearTemplates()
	assert.Empty(t, s.Templates())

	// The name is free again
	_, err = s.DefTemplate("gone", SlotSpec{Name: "v"})
	assert.NoError(t, err)
}
