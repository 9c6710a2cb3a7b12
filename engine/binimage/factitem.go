package binimage

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/utils"
)

// The fact item writes the asserted fact list in assertion order. On
// load the facts replay through the restored network, which rebuilds
// the alpha and beta memories and the agenda deterministically.

func factItem() *Item {
	return &Item{
		Name:     "facts",
		Priority: 70,

		Find: func(img *Image) {
			for _, f := range img.Facts.Facts() {
				for i := 0; i < f.SlotCount(); i++ {
					for _, a := range f.Slot(i) {
						atoms.MarkNeeded(a)
					}
				}
			}
		},

		SaveStorage: func(img *Image, w *Writer) {
			w.U64(uint64(img.Facts.Count()))
		},

		Save: func(img *Image, w *Writer) {
			for _, f := range img.Facts.Facts() {
				w.U32(f.ClassID())
				w.U64(uint64(f.SlotCount()))
				for i := 0; i < f.SlotCount(); i++ {
					fields := f.Slot(i)
					w.U64(uint64(len(fields)))
					for _, a := range fields {
						img.PutAtom(w, a)
					}
				}
			}
		},

		Load: func(img *Image, r *Reader) error {
			img.PendingFacts = img.PendingFacts[:0]
			for r.Remaining() > 0 {
				templateID, err := r.U32()
				if err != nil {
					return err
				}
				slotCount, err := r.U64()
				if err != nil {
					return err
				}
				slots := make([][]*atoms.Atom, slotCount)
				for i := uint64(0); i < slotCount; i++ {
					fieldCount, err := r.U64()
					if err != nil {
						return err
					}
					fields := make([]*atoms.Atom, 0, fieldCount)
					for j := uint64(0); j < fieldCount; j++ {
						a, err := img.GetAtom(r)
						if err != nil {
							return err
						}
						fields = append(fields, a)
					}
					slots[i] = fields
				}
				img.PendingFacts = append(img.PendingFacts, pendingFact{
					template: templateID,
					slots:    slots,
				})
			}
			return nil
		},

		AfterLoad: func(img *Image) error {
			for _, pf := range img.PendingFacts {
				t := img.Facts.TemplateByID(pf.template)
				if t == nil {
					return utils.WrapError(utils.ErrBinaryFormat, "fact references unknown template")
				}
				f := img.Facts.NewFact(t)
				for i, fields := range pf.slots {
					f.SetAt(i, fields...)
				}
				if _, err := img.Facts.Assert(f); err != nil {
					return err
				}
			}
			img.PendingFacts = nil

			// A rule leading with a negated group activates on nothing;
			// settle those once the replay is complete.
			for _, j := range img.LoadJoins {
				img.Net.PrimeEmptyQuantified(j)
			}
			return nil
		},

		Clear: func(img *Image) {
			img.Facts.RetractAll()
		},
	}
}
