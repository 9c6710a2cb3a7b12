package constructs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rete_v1/engine/atoms"
)

type dummyConstruct struct {
	Header
}

func TestRegistryBasics(t *testing.T) {
	reg := atoms.NewRegistry()
	r := NewRegistry(reg, nil)

	// MAIN exists and is current
	require.Len(t, r.Modules, 1)
	assert.Equal(t, MainModuleName, r.Current.Name.Lexeme())

	it := r.RegisterItemType("defwidget")
	assert.Equal(t, 0, it.Position)

	// New modules grow the item array and become current
	db := r.DefineModule("DB")
	assert.Same(t, db, r.Current)
	assert.NotNil(t, db.Item(it))
	assert.Same(t, db, r.FindModule("DB"))
	assert.Nil(t, r.FindModule("NOPE"))
}

func TestAddFindRemoveConstruct(t *testing.T) {
	reg := atoms.NewRegistry()
	r := NewRegistry(reg, nil)
	it := r.RegisterItemType("defwidget")
	m := r.Current

	a := &dummyConstruct{}
	a.Name = reg.Symbol("a")
	b := &dummyConstruct{}
	b.Name = reg.Symbol("b")

	r.AddConstruct(m, it, a)
	r.AddConstruct(m, it, b)

	assert.Same(t, a, r.FindConstruct(m, it, "a"))
	assert.Same(t, b, r.FindConstruct(m, it, "b"))
	assert.Same(t, m, a.Module())

	var names []string
	r.WalkConstructs(it, func(c Construct) {
		names = append(names, c.ConstructHeader().Name.Lexeme())
	})
	assert.Equal(t, []string{"a", "b"}, names)

	r.RemoveConstruct(it, a)
	assert.Nil(t, r.FindConstruct(m, it, "a"))
	assert.Same(t, b, m.Item(it).First)
	assert.Same(t, b, m.Item(it).Last)
}

func TestPortItems(t *testing.T) {
	reg := atoms.NewRegistry()
	r := NewRegistry(reg, nil)
	m := r.DefineModule("EXPORTER")

	p := PortItem{
		ModuleName:    reg.Symbol("MAIN"),
		ConstructType: reg.Symbol("defwidget"),
		ConstructName: reg.Symbol("w"),
	}
	m.AddExport(p)
	assert.Len(t, m.Exports, 1)

	r.Modules[0].AddImport(p)
	assert.Len(t, r.Modules[0].Imports, 1)
}

func TestUserData(t *testing.T) {
	reg := atoms.NewRegistry()
	h := &Header{Name: reg.Symbol("x")}
	assert.Nil(t, h.GetUserData("k"))
	h.SetUserData("k", 42)
	assert.Equal(t, 42, h.GetUserData("k"))
}
