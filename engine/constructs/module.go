package constructs

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/utils"
)

// MainModuleName is the module every environment starts with
const MainModuleName = "MAIN"

// PortItem links a named construct across modules through an import or
// export declaration.
type PortItem struct {
	ModuleName    *atoms.Atom
	ConstructType *atoms.Atom
	ConstructName *atoms.Atom
}

// ModuleItemHeader anchors the constructs of one flavour inside one
// module.
type ModuleItemHeader struct {
	TheModule *Module
	First     Construct
	Last      Construct
}

// Module holds per-construct-type headers plus import and export lists
type Module struct {
	Name    *atoms.Atom
	BsaveID uint64
	Imports []PortItem
	Exports []PortItem

	items []*ModuleItemHeader
}

// ItemType is a registered construct flavour; Position indexes the
// per-module item array.
type ItemType struct {
	Name     string
	Position int
}

// Registry owns the module list and the construct-type registrations
type Registry struct {
	Reg     *atoms.Registry
	Modules []*Module
	Current *Module

	itemTypes []*ItemType
	logger    *utils.Logger
}

// NewRegistry creates the registry with the MAIN module current
func NewRegistry(reg *atoms.Registry, logger *utils.Logger) *Registry {
	if logger == nil {
		logger = utils.DefaultLogger("constructs")
	}
	r := &Registry{Reg: reg, logger: logger}
	r.DefineModule(MainModuleName)
	return r
}

// RegisterItemType registers a construct flavour. Must happen before
// any module is defined beyond MAIN; existing modules grow their item
// arrays.
func (r *Registry) RegisterItemType(name string) *ItemType {
	it := &ItemType{Name: name, Position: len(r.itemTypes)}
	r.itemTypes = append(r.itemTypes, it)
	for _, m := range r.Modules {
		m.items = append(m.items, &ModuleItemHeader{TheModule: m})
	}
	return it
}

// ItemTypes returns the registered flavours in registration order
func (r *Registry) ItemTypes() []*ItemType {
	return r.itemTypes
}

// DefineModule creates a module and makes it current
func (r *Registry) DefineModule(name string) *Module {
	m := &Module{Name: r.Reg.Symbol(name)}
	atoms.Retain(m.Name)
	m.items = make([]*ModuleItemHeader, len(r.itemTypes))
	for i := range m.items {
		m.items[i] = &ModuleItemHeader{TheModule: m}
	}
	r.Modules = append(r.Modules, m)
	r.Current = m
	return m
}

// FindModule locates a module by name
func (r *Registry) FindModule(name string) *Module {
	for _, m := range r.Modules {
		if m.Name.Lexeme() == name {
			return m
		}
	}
	return nil
}

// SetCurrent switches the current module
func (r *Registry) SetCurrent(m *Module) {
	r.Current = m
}

// Item returns the module's header for a construct flavour
func (m *Module) Item(it *ItemType) *ModuleItemHeader {
	return m.items[it.Position]
}

// AddConstruct appends a construct to the module's list for the
// flavour and wires the header's back-links.
func (r *Registry) AddConstruct(m *Module, it *ItemType, c Construct) {
	hdr := c.ConstructHeader()
	item := m.Item(it)
	hdr.WhichModule = item
	atoms.Retain(hdr.Name)
	if item.Last == nil {
		item.First = c
		item.Last = c
	} else {
		item.Last.ConstructHeader().Next = c
		item.Last = c
	}
}

// RemoveConstruct unlinks a construct from its module list
func (r *Registry) RemoveConstruct(it *ItemType, c Construct) {
	hdr := c.ConstructHeader()
	item := hdr.WhichModule
	if item == nil {
		return
	}
	var prev Construct
	for cur := item.First; cur != nil; cur = cur.ConstructHeader().Next {
		if cur == c {
			if prev == nil {
				item.First = hdr.Next
			} else {
				prev.ConstructHeader().Next = hdr.Next
			}
			if item.Last == c {
				item.Last = prev
			}
			hdr.Next = nil
			atoms.Release(hdr.Name)
			return
		}
		prev = cur
	}
}

// FindConstruct locates a construct by name in the module
func (r *Registry) FindConstruct(m *Module, it *ItemType, name string) Construct {
	for c := m.Item(it).First; c != nil; c = c.ConstructHeader().Next {
		if c.ConstructHeader().Name.Lexeme() == name {
			return c
		}
	}
	return nil
}

// WalkConstructs visits the flavour's constructs across every module
func (r *Registry) WalkConstructs(it *ItemType, fn func(Construct)) {
	for _, m := range r.Modules {
		for c := m.Item(it).First; c != nil; c = c.ConstructHeader().Next {
			fn(c)
		}
	}
}

// AddImport records an import port item on the module
func (m *Module) AddImport(p PortItem) {
	m.Imports = append(m.Imports, p)
}

// AddExport records an export port item on the module
func (m *Module) AddExport(p PortItem) {
	m.Exports = append(m.Exports, p)
}
