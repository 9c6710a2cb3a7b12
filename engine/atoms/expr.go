package atoms

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ExprKind tags an expression node
type ExprKind uint16

const (
	ExSymbol ExprKind = iota
	ExString
	ExInstanceName
	ExInteger
	ExFloat
	ExBitmap
	ExFnCall
	ExGetJNVar // join-network variable fetch, value is a VarRef bitmap
	ExGetPNVar // pattern-network variable fetch, value is a VarRef bitmap

	// ExVariable is an analysis-time placeholder naming an LHS
	// variable; rule compilation replaces every occurrence with a
	// network fetch. It never survives into a compiled test.
	ExVariable
)

// Expr is a tree node carrying (kind, value, first-child, next-sibling).
// Freshly built expressions are heap-owned and mutable; once handed to
// the pool they become hashed, immutable, and shared.
type Expr struct {
	Kind ExprKind

	// Atom for constants and var-ref bitmaps, *Function for calls
	Atom *Atom
	Fn   *Function

	Arg  *Expr // first child
	Next *Expr // next sibling

	// Pool bookkeeping, meaningful only on hashed expressions
	hashed bool
	count  int

	// Transient dense id assigned during binary save
	SaveID uint64
}

// Const builds a constant node from an interned atom
func Const(a *Atom) *Expr {
	var k ExprKind
	switch a.Kind() {
	case KindSymbol:
		k = ExSymbol
	case KindString:
		k = ExString
	case KindInstanceName:
		k = ExInstanceName
	case KindInteger:
		k = ExInteger
	case KindFloat:
		k = ExFloat
	case KindBitmap:
		k = ExBitmap
	}
	return &Expr{Kind: k, Atom: a}
}

// Call builds a function-call node over the given argument list
func Call(fn *Function, args ...*Expr) *Expr {
	e := &Expr{Kind: ExFnCall, Fn: fn}
	var last *Expr
	for _, a := range args {
		if last == nil {
			e.Arg = a
		} else {
			last.Next = a
		}
		last = a
	}
	return e
}

// Var builds an analysis-time variable reference by name
func Var(sym *Atom) *Expr {
	return &Expr{Kind: ExVariable, Atom: sym}
}

// JNVar builds a join-network variable fetch
func JNVar(r *Registry, ref VarRef) *Expr {
	return &Expr{Kind: ExGetJNVar, Atom: r.Bitmap(ref.Encode())}
}

// PNVar builds a pattern-network variable fetch
func PNVar(r *Registry, ref VarRef) *Expr {
	return &Expr{Kind: ExGetPNVar, Atom: r.Bitmap(ref.Encode())}
}

// Size returns the number of nodes in the tree
func (e *Expr) Size() uint64 {
	if e == nil {
		return 0
	}
	return 1 + e.Arg.Size() + e.Next.Size()
}

// Copy deep-copies the tree into fresh heap-owned nodes
func (e *Expr) Copy() *Expr {
	if e == nil {
		return nil
	}
	return &Expr{
		Kind: e.Kind,
		Atom: e.Atom,
		Fn:   e.Fn,
		Arg:  e.Arg.Copy(),
		Next: e.Next.Copy(),
	}
}

// AppendArg adds a sibling to the end of the argument list
func (e *Expr) AppendArg(arg *Expr) {
	if e.Arg == nil {
		e.Arg = arg
		return
	}
	last := e.Arg
	for last.Next != nil {
		last = last.Next
	}
	last.Next = arg
}

// Equal reports deep structural equality. Atom comparison is pointer
// comparison since atoms are interned.
func (e *Expr) Equal(o *Expr) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Kind != o.Kind || e.Atom != o.Atom || e.Fn != o.Fn {
		return false
	}
	return e.Arg.Equal(o.Arg) && e.Next.Equal(o.Next)
}

// Hash computes the deep structural hash used by the pool lookup
func (e *Expr) Hash() uint64 {
	d := xxhash.New()
	e.feed(d)
	return d.Sum64()
}

func (e *Expr) feed(d *xxhash.Digest) {
	if e == nil {
		d.Write([]byte{0xff})
		return
	}
	var tag [2]byte
	binary.LittleEndian.PutUint16(tag[:], uint16(e.Kind))
	d.Write(tag[:])
	if e.Atom != nil {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], e.Atom.bucket)
		d.Write(b[:])
		d.WriteString(e.Atom.lexeme)
	}
	if e.Fn != nil {
		d.WriteString(e.Fn.Name.Lexeme())
	}
	e.feed2(d)
}

func (e *Expr) feed2(d *xxhash.Digest) {
	e.Arg.feed(d)
	e.Next.feed(d)
}

// RetainTree bumps reference counts on every atom the tree references
func RetainTree(e *Expr) {
	if e == nil {
		return
	}
	if e.Atom != nil {
		Retain(e.Atom)
	}
	if e.Fn != nil {
		Retain(e.Fn.Name)
	}
	RetainTree(e.Arg)
	RetainTree(e.Next)
}

// ReleaseTree drops the counts taken by RetainTree
func ReleaseTree(e *Expr) {
	if e == nil {
		return
	}
	if e.Atom != nil {
		Release(e.Atom)
	}
	if e.Fn != nil {
		Release(e.Fn.Name)
	}
	ReleaseTree(e.Arg)
	ReleaseTree(e.Next)
}

// MarkNeededTree flags every referenced atom for a binary save
func MarkNeededTree(e *Expr) {
	if e == nil {
		return
	}
	if e.Atom != nil {
		MarkNeeded(e.Atom)
	}
	if e.Fn != nil {
		MarkNeeded(e.Fn.Name)
	}
	MarkNeededTree(e.Arg)
	MarkNeededTree(e.Next)
}
