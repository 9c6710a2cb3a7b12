package constructs

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
)

// Construct is anything with the common defined-construct prefix: a
// rule, a template, a module-scoped definition of any flavour.
type Construct interface {
	ConstructHeader() *Header
}

// Header is the common prefix of every defined construct. Identity is
// the pointer; BsaveID is assigned transiently during a binary save.
type Header struct {
	Name        *atoms.Atom
	WhichModule *ModuleItemHeader
	Next        Construct
	BsaveID     uint64
	PPForm      string
	UserData    map[string]interface{}
}

// ConstructHeader lets Header satisfy Construct when embedded
func (h *Header) ConstructHeader() *Header {
	return h
}

// Module returns the owning module
func (h *Header) Module() *Module {
	if h.WhichModule == nil {
		return nil
	}
	return h.WhichModule.TheModule
}

// SetUserData attaches opaque data to the construct
func (h *Header) SetUserData(key string, value interface{}) {
	if h.UserData == nil {
		h.UserData = make(map[string]interface{})
	}
	h.UserData[key] = value
}

// GetUserData retrieves data attached by SetUserData
func (h *Header) GetUserData(key string) interface{} {
	if h.UserData == nil {
		return nil
	}
	return h.UserData[key]
}
