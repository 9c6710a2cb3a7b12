package atoms

// Registry owns the four atom hash tables, the external-address list,
// the hashed-expression pool, and the function table. One registry per
// engine environment.
type Registry struct {
	Symbols  *Table
	Integers *Table
	Floats   *Table
	Bitmaps  *Table

	externals []*Atom

	// Canonical boolean symbols
	True  *Atom
	False *Atom

	Exprs     *ExprPool
	Functions map[string]*Function
}

// NewRegistry creates the atom tables and interns the permanent symbols
func NewRegistry() *Registry {
	r := &Registry{
		Symbols:   NewTable(KindSymbol, SymbolHashSize),
		Integers:  NewTable(KindInteger, IntegerHashSize),
		Floats:    NewTable(KindFloat, FloatHashSize),
		Bitmaps:   NewTable(KindBitmap, BitmapHashSize),
		Functions: make(map[string]*Function),
	}
	r.Exprs = NewExprPool(r)
	r.True = r.Symbol("TRUE")
	r.True.permanent = true
	r.False = r.Symbol("FALSE")
	r.False.permanent = true
	registerBuiltins(r)
	return r
}

// Symbol interns an identifier
func (r *Registry) Symbol(name string) *Atom {
	return r.Symbols.intern(KindSymbol, name, 0, 0, nil)
}

// String interns a string value. Strings share the lexeme table with
// symbols and instance-names but remain distinct atoms.
func (r *Registry) String(s string) *Atom {
	return r.Symbols.intern(KindString, s, 0, 0, nil)
}

// InstanceName interns an instance-name lexeme
func (r *Registry) InstanceName(s string) *Atom {
	return r.Symbols.intern(KindInstanceName, s, 0, 0, nil)
}

// Integer interns a 64-bit signed integer
func (r *Registry) Integer(v int64) *Atom {
	return r.Integers.intern(KindInteger, "", v, 0, nil)
}

// Float interns an IEEE-754 double
func (r *Registry) Float(v float64) *Atom {
	return r.Floats.intern(KindFloat, "", 0, v, nil)
}

// Bitmap interns an opaque byte string
func (r *Registry) Bitmap(b []byte) *Atom {
	return r.Bitmaps.intern(KindBitmap, "", 0, 0, b)
}

// External wraps an opaque handle; external addresses are not interned
// and never survive a binary save.
func (r *Registry) External(handle interface{}, subtype uint16) *Atom {
	a := &Atom{kind: KindExternal, external: handle, externalType: subtype, ephemeral: true}
	r.externals = append(r.externals, a)
	return a
}

// Retain increments the atom's reference count and clears its
// ephemeral flag.
func Retain(a *Atom) {
	if a == nil {
		return
	}
	a.count++
	a.ephemeral = false
}

// Release decrements the count; at zero the atom becomes an ephemeral
// candidate for the next sweep.
func Release(a *Atom) {
	if a == nil {
		return
	}
	a.count--
	if a.count <= 0 && !a.permanent {
		a.ephemeral = true
		if a.owner != nil && !a.listed {
			a.owner.ephemeral = append(a.owner.ephemeral, a)
			a.listed = true
		}
	}
}

// MarkNeeded flags an atom for inclusion in a binary save even when it
// is referenced only from the network.
func MarkNeeded(a *Atom) {
	if a != nil {
		a.needed = true
	}
}

// Sweep collects ephemeral atoms across all tables. Only call at safe
// points; an atom referenced from a live expression frame must not be
// collected mid-propagation.
func (r *Registry) Sweep() int {
	freed := r.Symbols.Sweep()
	freed += r.Integers.Sweep()
	freed += r.Floats.Sweep()
	freed += r.Bitmaps.Sweep()
	return freed
}

// ClearNeeded resets all save-phase marks
func (r *Registry) ClearNeeded() {
	r.Symbols.ClearNeeded()
	r.Integers.ClearNeeded()
	r.Floats.ClearNeeded()
	r.Bitmaps.ClearNeeded()
}

// TableFor returns the table holding atoms of the given kind
func (r *Registry) TableFor(kind Kind) *Table {
	switch kind {
	case KindSymbol, KindString, KindInstanceName:
		return r.Symbols
	case KindInteger:
		return r.Integers
	case KindFloat:
		return r.Floats
	case KindBitmap:
		return r.Bitmaps
	}
	return nil
}
