package binimage

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/facts"
	"github.com/nmxmxh/rete_v1/utils"
)

// Standard binary items. Priority establishes save order: modules,
// then templates, then the rule/join/pattern network, then the fact
// list replayed on load to rebuild the beta memories and agenda.

// StandardRegistry wires the built-in items
func StandardRegistry() *Registry {
	r := &Registry{}
	r.Add(moduleItem())
	r.Add(templateItem())
	r.Add(networkItem())
	r.Add(factItem())
	return r
}

// ---- defmodule ----

func moduleItem() *Item {
	return &Item{
		Name:     "defmodule",
		Priority: 100,

		Find: func(img *Image) {
			for i, m := range img.Cons.Modules {
				m.BsaveID = uint64(i)
				atoms.MarkNeeded(m.Name)
				for _, p := range m.Imports {
					markPort(p)
				}
				for _, p := range m.Exports {
					markPort(p)
				}
			}
		},

		SaveStorage: func(img *Image, w *Writer) {
			w.U64(uint64(len(img.Cons.Modules)))
		},

		Save: func(img *Image, w *Writer) {
			for _, m := range img.Cons.Modules {
				img.PutAtom(w, m.Name)
				w.U64(uint64(len(m.Imports)))
				for _, p := range m.Imports {
					putPort(img, w, p)
				}
				w.U64(uint64(len(m.Exports)))
				for _, p := range m.Exports {
					putPort(img, w, p)
				}
			}
		},

		LoadStorage: func(img *Image, r *Reader) error {
			count, err := r.U64()
			if err != nil {
				return err
			}
			img.LoadModules = make([]*constructs.Module, 0, count)
			return nil
		},

		Load: func(img *Image, r *Reader) error {
			for r.Remaining() > 0 {
				name, err := img.GetAtom(r)
				if err != nil {
					return err
				}
				m := img.Cons.FindModule(name.Lexeme())
				if m == nil {
					m = img.Cons.DefineModule(name.Lexeme())
				}
				m.BsaveID = uint64(len(img.LoadModules))
				img.LoadModules = append(img.LoadModules, m)

				nImports, err := r.U64()
				if err != nil {
					return err
				}
				for i := uint64(0); i < nImports; i++ {
					p, err := getPort(img, r)
					if err != nil {
						return err
					}
					m.AddImport(p)
				}
				nExports, err := r.U64()
				if err != nil {
					return err
				}
				for i := uint64(0); i < nExports; i++ {
					p, err := getPort(img, r)
					if err != nil {
						return err
					}
					m.AddExport(p)
				}
			}
			if len(img.LoadModules) > 0 {
				img.Cons.SetCurrent(img.LoadModules[0])
			}
			return nil
		},
	}
}

func markPort(p constructs.PortItem) {
	atoms.MarkNeeded(p.ModuleName)
	atoms.MarkNeeded(p.ConstructType)
	atoms.MarkNeeded(p.ConstructName)
}

func putPort(img *Image, w *Writer, p constructs.PortItem) {
	img.PutAtom(w, p.ModuleName)
	img.PutAtom(w, p.ConstructType)
	img.PutAtom(w, p.ConstructName)
}

func getPort(img *Image, r *Reader) (constructs.PortItem, error) {
	var p constructs.PortItem
	var err error
	if p.ModuleName, err = img.GetAtom(r); err != nil {
		return p, err
	}
	if p.ConstructType, err = img.GetAtom(r); err != nil {
		return p, err
	}
	p.ConstructName, err = img.GetAtom(r)
	return p, err
}

// ---- deftemplate ----

func templateItem() *Item {
	return &Item{
		Name:     "deftemplate",
		Priority: 90,

		Find: func(img *Image) {
			for _, t := range img.Facts.Templates() {
				atoms.MarkNeeded(t.Name)
				for _, s := range t.Slots {
					atoms.MarkNeeded(s.Name)
					for _, d := range s.Default {
						atoms.MarkNeeded(d)
					}
				}
			}
		},

		SaveStorage: func(img *Image, w *Writer) {
			w.U64(uint64(len(img.Facts.Templates())))
		},

		Save: func(img *Image, w *Writer) {
			for _, t := range img.Facts.Templates() {
				img.PutAtom(w, t.Name)
				w.U64(t.Module().BsaveID)
				w.U64(uint64(len(t.Slots)))
				for _, s := range t.Slots {
					img.PutAtom(w, s.Name)
					w.Bool(s.Multifield)
					w.U64(uint64(len(s.Default)))
					for _, d := range s.Default {
						img.PutAtom(w, d)
					}
				}
			}
		},

		Load: func(img *Image, r *Reader) error {
			for r.Remaining() > 0 {
				name, err := img.GetAtom(r)
				if err != nil {
					return err
				}
				moduleID, err := r.U64()
				if err != nil {
					return err
				}
				if moduleID >= uint64(len(img.LoadModules)) {
					return utils.WrapError(utils.ErrBinaryFormat, "template module id out of range")
				}
				img.Cons.SetCurrent(img.LoadModules[moduleID])

				slotCount, err := r.U64()
				if err != nil {
					return err
				}
				specs := make([]facts.SlotSpec, 0, slotCount)
				for i := uint64(0); i < slotCount; i++ {
					slotName, err := img.GetAtom(r)
					if err != nil {
						return err
					}
					multi, err := r.Bool()
					if err != nil {
						return err
					}
					defCount, err := r.U64()
					if err != nil {
						return err
					}
					defaults := make([]*atoms.Atom, 0, defCount)
					for j := uint64(0); j < defCount; j++ {
						d, err := img.GetAtom(r)
						if err != nil {
							return err
						}
						defaults = append(defaults, d)
					}
					specs = append(specs, facts.SlotSpec{
						Name:       slotName.Lexeme(),
						Multifield: multi,
						Default:    defaults,
					})
				}
				if _, err := img.Facts.DefTemplate(name.Lexeme(), specs...); err != nil {
					return err
				}
			}
			return nil
		},

		Clear: func(img *Image) {
			img.Facts.ClearTemplates()
		},
	}
}
