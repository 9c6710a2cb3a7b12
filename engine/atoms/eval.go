package atoms

// Value is the runtime currency of the evaluator: an interned *Atom or
// a Multifield segment.
type Value interface{}

// Multifield is an ordered segment of atoms bound to one multifield
// variable or slot.
type Multifield []*Atom

// Frame supplies variable values during a network-test evaluation. The
// left frame is a partial match; the right frame wraps the single
// candidate entity.
type Frame interface {
	FrameValue(ref VarRef) Value
}

// Context is the evaluation context threaded through every join and
// pattern test. It replaces process-global binding state: callers that
// recurse save and restore it explicitly via Push/Pop.
type Context struct {
	Reg         *Registry
	LHS         Frame
	RHS         Frame
	CurrentJoin interface{}

	// EvalError is sticky across one outer operation; a join test that
	// errors is treated as a match and the flag reported afterwards.
	EvalError bool
}

// Push installs a new binding environment and returns the previous one
func (c *Context) Push(lhs, rhs Frame, join interface{}) Context {
	saved := *c
	c.LHS = lhs
	c.RHS = rhs
	c.CurrentJoin = join
	return saved
}

// Pop restores a binding environment saved by Push, preserving any
// error raised in between.
func (c *Context) Pop(saved Context) {
	raised := c.EvalError
	*c = saved
	c.EvalError = c.EvalError || raised
}

// Function is a registered primitive callable from expression trees.
// The handler receives the raw argument list and evaluates what it
// needs, which gives and/or their short-circuit behaviour.
type Function struct {
	Name    *Atom
	Handler func(*Context, *Expr) Value
}

// Truth maps a bool onto the canonical symbols
func (c *Context) Truth(b bool) *Atom {
	if b {
		return c.Reg.True
	}
	return c.Reg.False
}

// IsFalse reports whether a value is the FALSE symbol
func (c *Context) IsFalse(v Value) bool {
	a, ok := v.(*Atom)
	return ok && a == c.Reg.False
}

// Evaluate reduces an expression tree to a value. Errors do not
// propagate: the context's error flag is set and FALSE returned, so a
// surrounding join test can apply its error-as-match policy.
func Evaluate(c *Context, e *Expr) Value {
	if e == nil {
		return c.Reg.True
	}
	switch e.Kind {
	case ExSymbol, ExString, ExInstanceName, ExInteger, ExFloat, ExBitmap:
		return e.Atom
	case ExFnCall:
		if e.Fn == nil || e.Fn.Handler == nil {
			c.EvalError = true
			return c.Reg.False
		}
		return e.Fn.Handler(c, e.Arg)
	case ExGetJNVar:
		ref := DecodeVarRef(e.Atom.Bytes())
		frame := c.LHS
		if ref.FromRight {
			frame = c.RHS
		}
		if frame == nil {
			c.EvalError = true
			return c.Reg.False
		}
		return frame.FrameValue(ref)
	case ExGetPNVar:
		ref := DecodeVarRef(e.Atom.Bytes())
		if c.RHS == nil {
			c.EvalError = true
			return c.Reg.False
		}
		return frameValueRight(c, ref)
	}
	c.EvalError = true
	return c.Reg.False
}

func frameValueRight(c *Context, ref VarRef) Value {
	ref.FromRight = true
	return c.RHS.FrameValue(ref)
}

// ValuesEqual compares two values: pointer equality for atoms,
// element-wise for multifields.
func ValuesEqual(a, b Value) bool {
	am, aok := a.(Multifield)
	bm, bok := b.(Multifield)
	if aok != bok {
		return false
	}
	if aok {
		if len(am) != len(bm) {
			return false
		}
		for i := range am {
			if am[i] != bm[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// ValueHash hashes a value for beta-memory bucketing. The same
// expression must hash identically on both sides of a join.
func ValueHash(v Value) uint64 {
	switch t := v.(type) {
	case *Atom:
		return hashPayload(t.kind, t.lexeme, t.integer, t.float, t.bits)
	case Multifield:
		var h uint64
		for _, a := range t {
			h = mix64(h ^ hashPayload(a.kind, a.lexeme, a.integer, a.float, a.bits))
		}
		return h
	}
	return 0
}
