package atoms

import (
	"github.com/cespare/xxhash/v2"
)

// Hash table sizes, one modulus per table
const (
	SymbolHashSize  = 63559
	IntegerHashSize = 8191
	FloatHashSize   = 8191
	BitmapHashSize  = 8191
)

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

func hashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Table is one atom hash table. Lookups take a payload and return the
// interned atom, allocating on first sight.
type Table struct {
	kind      Kind
	modulus   uint64
	buckets   []*Atom
	count     uint64
	ephemeral []*Atom
}

// NewTable creates a table for one atom kind
func NewTable(kind Kind, modulus uint64) *Table {
	return &Table{
		kind:    kind,
		modulus: modulus,
		buckets: make([]*Atom, modulus),
	}
}

// Count returns the number of interned atoms
func (t *Table) Count() uint64 {
	return t.count
}

// Walk visits every atom in bucket order
func (t *Table) Walk(fn func(*Atom)) {
	for _, head := range t.buckets {
		for a := head; a != nil; a = a.next {
			fn(a)
		}
	}
}

// intern finds or creates the atom for the given payload. Symbols,
// strings, and instance-names share the lexeme table but remain
// distinct entries, so the kind participates in the match. A fresh
// atom starts with count zero on the ephemeral list; callers that keep
// a reference must Retain it before the next sweep.
func (t *Table) intern(kind Kind, lexeme string, integer int64, float float64, bits []byte) *Atom {
	h := hashPayload(kind, lexeme, integer, float, bits)
	bucket := h % t.modulus

	for a := t.buckets[bucket]; a != nil; a = a.next {
		if a.kind == kind && t.equalPayload(a, lexeme, integer, float, bits) {
			return a
		}
	}

	a := &Atom{
		kind:      kind,
		bucket:    bucket,
		ephemeral: true,
		lexeme:    lexeme,
		integer:   integer,
		float:     float,
		bits:      bits,
		owner:     t,
		listed:    true,
	}
	a.next = t.buckets[bucket]
	t.buckets[bucket] = a
	t.count++
	t.ephemeral = append(t.ephemeral, a)
	return a
}

func (t *Table) equalPayload(a *Atom, lexeme string, integer int64, float float64, bits []byte) bool {
	switch a.kind {
	case KindSymbol, KindString, KindInstanceName:
		return a.lexeme == lexeme
	case KindInteger:
		return a.integer == integer
	case KindFloat:
		return a.float == float
	case KindBitmap:
		if len(a.bits) != len(bits) {
			return false
		}
		for i := range bits {
			if a.bits[i] != bits[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Sweep frees every ephemeral candidate whose count is still zero and
// that is not marked needed. Only run at safe points: between
// propagation events, post-fire, post-reset.
func (t *Table) Sweep() int {
	if len(t.ephemeral) == 0 {
		return 0
	}
	freed := 0
	kept := t.ephemeral[:0]
	for _, a := range t.ephemeral {
		if a.count == 0 && !a.permanent && !a.needed {
			t.unlink(a)
			a.listed = false
			freed++
			continue
		}
		if a.count == 0 && a.ephemeral {
			kept = append(kept, a)
		} else {
			a.listed = false
		}
	}
	t.ephemeral = kept
	return freed
}

func (t *Table) unlink(a *Atom) {
	bucket := a.bucket
	if t.buckets[bucket] == a {
		t.buckets[bucket] = a.next
	} else {
		for prev := t.buckets[bucket]; prev != nil; prev = prev.next {
			if prev.next == a {
				prev.next = a.next
				break
			}
		}
	}
	a.next = nil
	t.count--
}

// ClearNeeded resets the save-phase marks after an image write
func (t *Table) ClearNeeded() {
	t.Walk(func(a *Atom) { a.needed = false })
}
