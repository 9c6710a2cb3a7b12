package binimage

import (
	"io"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/utils"
)

// Atom table and expression pool chunks. Atoms not marked needed are
// skipped; the dense id of a written atom is its position in the
// stream, and the load side re-derives hash buckets by re-interning.

const noAtomKind = 0xFF

var atomChunkNames = []string{"symbols", "integers", "floats", "bitmaps"}

func (img *Image) atomTables() []*atoms.Table {
	return []*atoms.Table{
		img.Reg.Symbols,
		img.Reg.Integers,
		img.Reg.Floats,
		img.Reg.Bitmaps,
	}
}

func (img *Image) writeAtomChunks(out io.Writer) error {
	for i, table := range img.atomTables() {
		var list []*atoms.Atom
		table.Walk(func(a *atoms.Atom) {
			if a.Needed() {
				a.SaveID = uint64(len(list))
				list = append(list, a)
			}
		})

		storage := NewWriter()
		storage.U64(uint64(len(list)))

		data := NewWriter()
		for _, a := range list {
			data.U8(uint8(a.Kind()))
			switch a.Kind() {
			case atoms.KindSymbol, atoms.KindString, atoms.KindInstanceName:
				data.Str(a.Lexeme())
			case atoms.KindInteger:
				data.I64(a.Integer())
			case atoms.KindFloat:
				data.F64(a.Float())
			case atoms.KindBitmap:
				data.Blob(a.Bytes())
			}
		}
		if err := writeChunk(out, atomChunkNames[i], storage.Bytes(), data.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) readAtomChunks(in io.Reader) error {
	for _, want := range atomChunkNames {
		nameBytes, err := readLenPrefixed(in)
		if err != nil {
			return err
		}
		if string(nameBytes) != want {
			return utils.WrapError(utils.ErrBinaryFormat, "expected "+want+" chunk")
		}
		storageBytes, err := readLenPrefixed(in)
		if err != nil {
			return err
		}
		dataBytes, err := readLenPrefixed(in)
		if err != nil {
			return err
		}

		storage := NewReader(storageBytes)
		count, err := storage.U64()
		if err != nil {
			return err
		}

		data := NewReader(dataBytes)
		list := make([]*atoms.Atom, 0, count)
		for i := uint64(0); i < count; i++ {
			kind, err := data.U8()
			if err != nil {
				return err
			}
			var a *atoms.Atom
			switch atoms.Kind(kind) {
			case atoms.KindSymbol:
				s, err := data.Str()
				if err != nil {
					return err
				}
				a = img.Reg.Symbol(s)
			case atoms.KindString:
				s, err := data.Str()
				if err != nil {
					return err
				}
				a = img.Reg.String(s)
			case atoms.KindInstanceName:
				s, err := data.Str()
				if err != nil {
					return err
				}
				a = img.Reg.InstanceName(s)
			case atoms.KindInteger:
				v, err := data.I64()
				if err != nil {
					return err
				}
				a = img.Reg.Integer(v)
			case atoms.KindFloat:
				v, err := data.F64()
				if err != nil {
					return err
				}
				a = img.Reg.Float(v)
			case atoms.KindBitmap:
				b, err := data.Blob()
				if err != nil {
					return err
				}
				a = img.Reg.Bitmap(b)
			default:
				return utils.WrapError(utils.ErrBinaryFormat, "bad atom kind")
			}
			list = append(list, a)
		}

		switch want {
		case "symbols":
			img.LoadSymbols = list
		case "integers":
			img.LoadIntegers = list
		case "floats":
			img.LoadFloats = list
		case "bitmaps":
			img.LoadBitmaps = list
		}
	}
	return nil
}

// PutAtom id-encodes an atom reference
func (img *Image) PutAtom(w *Writer, a *atoms.Atom) {
	if a == nil {
		w.U8(noAtomKind)
		w.U64(IDNone)
		return
	}
	w.U8(uint8(a.Kind()))
	w.U64(a.SaveID)
}

// GetAtom resolves an id-encoded atom reference against the loaded
// tables.
func (img *Image) GetAtom(r *Reader) (*atoms.Atom, error) {
	kind, err := r.U8()
	if err != nil {
		return nil, err
	}
	id, err := r.U64()
	if err != nil {
		return nil, err
	}
	if kind == noAtomKind || id == IDNone {
		return nil, nil
	}
	var list []*atoms.Atom
	switch atoms.Kind(kind) {
	case atoms.KindSymbol, atoms.KindString, atoms.KindInstanceName:
		list = img.LoadSymbols
	case atoms.KindInteger:
		list = img.LoadIntegers
	case atoms.KindFloat:
		list = img.LoadFloats
	case atoms.KindBitmap:
		list = img.LoadBitmaps
	default:
		return nil, utils.WrapError(utils.ErrBinaryFormat, "bad atom reference kind")
	}
	if id >= uint64(len(list)) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "atom id out of range")
	}
	return list[id], nil
}

// flattenExpressions assigns dense node ids across the whole hashed-
// expression pool and marks every referenced atom needed.
func (img *Image) flattenExpressions() {
	img.exprNodes = img.exprNodes[:0]
	img.Reg.Exprs.Walk(func(root *atoms.Expr) {
		atoms.MarkNeededTree(root)
		img.flattenTree(root)
	})
}

func (img *Image) flattenTree(e *atoms.Expr) {
	if e == nil {
		return
	}
	e.SaveID = uint64(len(img.exprNodes))
	img.exprNodes = append(img.exprNodes, e)
	img.flattenTree(e.Arg)
	img.flattenTree(e.Next)
}

func (img *Image) writeExprChunk(out io.Writer) error {
	storage := NewWriter()
	storage.U64(uint64(len(img.exprNodes)))

	data := NewWriter()
	for _, e := range img.exprNodes {
		data.U16(uint16(e.Kind))
		img.PutAtom(data, e.Atom)
		if e.Fn != nil {
			img.PutAtom(data, e.Fn.Name)
		} else {
			img.PutAtom(data, nil)
		}
		putID(data, e.Arg)
		putID(data, e.Next)
	}
	return writeChunk(out, "expressions", storage.Bytes(), data.Bytes())
}

func putID(w *Writer, e *atoms.Expr) {
	if e == nil {
		w.U64(IDNone)
		return
	}
	w.U64(e.SaveID)
}

func (img *Image) readExprChunk(in io.Reader) error {
	nameBytes, err := readLenPrefixed(in)
	if err != nil {
		return err
	}
	if string(nameBytes) != "expressions" {
		return utils.WrapError(utils.ErrBinaryFormat, "expected expressions chunk")
	}
	storageBytes, err := readLenPrefixed(in)
	if err != nil {
		return err
	}
	dataBytes, err := readLenPrefixed(in)
	if err != nil {
		return err
	}

	storage := NewReader(storageBytes)
	count, err := storage.U64()
	if err != nil {
		return err
	}

	img.LoadExprs = make([]*atoms.Expr, count)
	args := make([]uint64, count)
	nexts := make([]uint64, count)

	data := NewReader(dataBytes)
	for i := uint64(0); i < count; i++ {
		kind, err := data.U16()
		if err != nil {
			return err
		}
		atom, err := img.GetAtom(data)
		if err != nil {
			return err
		}
		fnName, err := img.GetAtom(data)
		if err != nil {
			return err
		}
		argID, err := data.U64()
		if err != nil {
			return err
		}
		nextID, err := data.U64()
		if err != nil {
			return err
		}

		e := &atoms.Expr{Kind: atoms.ExprKind(kind), Atom: atom}
		if fnName != nil {
			fn := img.Reg.Function(fnName.Lexeme())
			if fn == nil {
				return utils.WrapError(utils.ErrBinaryFormat,
					"unknown function "+fnName.Lexeme())
			}
			e.Fn = fn
		}
		img.LoadExprs[i] = e
		args[i] = argID
		nexts[i] = nextID
	}

	// Second pass: rewrite id fields into pointers
	for i := uint64(0); i < count; i++ {
		if args[i] != IDNone {
			if args[i] >= count {
				return utils.WrapError(utils.ErrBinaryFormat, "expression arg id out of range")
			}
			img.LoadExprs[i].Arg = img.LoadExprs[args[i]]
		}
		if nexts[i] != IDNone {
			if nexts[i] >= count {
				return utils.WrapError(utils.ErrBinaryFormat, "expression next id out of range")
			}
			img.LoadExprs[i].Next = img.LoadExprs[nexts[i]]
		}
	}
	return nil
}

// PutExpr id-encodes a hashed expression reference by its root node
func (img *Image) PutExpr(w *Writer, e *atoms.Expr) {
	putID(w, e)
}

// GetExpr resolves an expression reference and re-interns the tree so
// reference counting matches the build-time wiring.
func (img *Image) GetExpr(r *Reader) (*atoms.Expr, error) {
	id, err := r.U64()
	if err != nil {
		return nil, err
	}
	if id == IDNone {
		return nil, nil
	}
	if id >= uint64(len(img.LoadExprs)) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "expression id out of range")
	}
	return img.Reg.Exprs.Intern(img.LoadExprs[id]), nil
}
