package atoms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntern_PointerEquality(t *testing.T) {
	r := NewRegistry()

	a := r.Symbol("point")
	b := r.Symbol("point")
	assert.Same(t, a, b)

	// Symbols and strings with the same text are distinct atoms
	s := r.String("point")
	assert.NotSame(t, a, s)
	assert.Equal(t, KindString, s.Kind())

	i1 := r.Integer(42)
	i2 := r.Integer(42)
	assert.Same(t, i1, i2)
	assert.NotSame(t, i1, r.Integer(43))

	f1 := r.Float(3.5)
	assert.Same(t, f1, r.Float(3.5))

	bm := r.Bitmap([]byte{1, 2, 3})
	assert.Same(t, bm, r.Bitmap([]byte{1, 2, 3}))
	assert.NotSame(t, bm, r.Bitmap([]byte{1, 2, 4}))
}

func TestRetainReleaseSweep(t *testing.T) {
	r := NewRegistry()

	a := r.Symbol("transient")
	require.Equal(t, 0, a.Count())

	Retain(a)
	assert.Equal(t, 1, a.Count())

	// A retained atom survives the sweep
	before := r.Symbols.Count()
	r.Sweep()
	assert.Equal(t, before, r.Symbols.Count())

	Release(a)
	freed := r.Sweep()
	assert.Equal(t, 1, freed)

	// Re-interning after collection yields a fresh atom
	b := r.Symbol("transient")
	assert.Equal(t, 0, b.Count())
}

func TestSweep_SkipsNeededAndPermanent(t *testing.T) {
	r := NewRegistry()

	a := r.Symbol("save-only")
	MarkNeeded(a)
	assert.Equal(t, 0, r.Sweep())

	r.ClearNeeded()
	assert.Equal(t, 1, r.Sweep())

	// TRUE and FALSE are permanent
	r.Sweep()
	assert.Same(t, r.True, r.Symbol("TRUE"))
}

func TestVarRefRoundTrip(t *testing.T) {
	ref := VarRef{Pattern: 3, Slot: 7, Field: 2, FromRight: true, Multi: true}
	got := DecodeVarRef(ref.Encode())
	assert.Equal(t, ref, got)
}

func TestExprPool_Sharing(t *testing.T) {
	r := NewRegistry()

	build := func() *Expr {
		return Call(r.Function("eq"),
			Const(r.Symbol("x")),
			Const(r.Integer(1)))
	}

	e1 := r.Exprs.Intern(build())
	e2 := r.Exprs.Intern(build())
	assert.Same(t, e1, e2)
	assert.True(t, e1.Hashed())
	assert.Equal(t, uint64(1), r.Exprs.Count())

	// Interning retains referenced atoms
	assert.Greater(t, r.Symbol("x").Count(), 0)

	r.Exprs.Release(e1)
	assert.Equal(t, uint64(1), r.Exprs.Count())
	r.Exprs.Release(e2)
	assert.Equal(t, uint64(0), r.Exprs.Count())
	assert.Equal(t, 0, r.Symbol("x").Count())
}

func TestExprEqualAndHash(t *testing.T) {
	r := NewRegistry()

	a := Call(r.Function("eq"), Const(r.Integer(1)), Const(r.Integer(2)))
	b := Call(r.Function("eq"), Const(r.Integer(1)), Const(r.Integer(2)))
	c := Call(r.Function("eq"), Const(r.Integer(2)), Const(r.Integer(1)))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, uint64(3), a.Size())
}

func TestEvaluate_Builtins(t *testing.T) {
	r := NewRegistry()
	ctx := &Context{Reg: r}

	eval := func(e *Expr) Value { return Evaluate(ctx, e) }

	// eq / neq
	assert.Same(t, r.True, eval(Call(r.Function("eq"), Const(r.Integer(1)), Const(r.Integer(1)))))
	assert.Same(t, r.False, eval(Call(r.Function("eq"), Const(r.Integer(1)), Const(r.Integer(2)))))
	assert.Same(t, r.True, eval(Call(r.Function("neq"), Const(r.Symbol("a")), Const(r.Symbol("b")))))

	// numeric comparison coerces integer and float
	assert.Same(t, r.True, eval(Call(r.Function("<"), Const(r.Integer(1)), Const(r.Float(1.5)))))
	assert.Same(t, r.False, eval(Call(r.Function(">"), Const(r.Integer(1)), Const(r.Float(1.5)))))

	// and / or short-circuit
	assert.Same(t, r.True, eval(Call(r.Function("and"),
		Const(r.True),
		Call(r.Function("not"), Const(r.False)))))
	assert.Same(t, r.False, eval(Call(r.Function("or"), Const(r.False), Const(r.False))))

	assert.False(t, ctx.EvalError)
}

func TestEvaluate_ErrorSetsFlag(t *testing.T) {
	r := NewRegistry()
	ctx := &Context{Reg: r}

	// Comparing a symbol numerically is an evaluation error
	v := Evaluate(ctx, Call(r.Function("<"), Const(r.Symbol("a")), Const(r.Integer(1))))
	assert.Same(t, r.False, v)
	assert.True(t, ctx.EvalError)
}

func TestContextPushPop(t *testing.T) {
	r := NewRegistry()
	ctx := &Context{Reg: r}

	saved := ctx.Push(nil, nil, "join-1")
	assert.Equal(t, "join-1", ctx.CurrentJoin)
	ctx.EvalError = true
	ctx.Pop(saved)

	assert.Nil(t, ctx.CurrentJoin)
	// An error raised in the nested scope stays visible
	assert.True(t, ctx.EvalError)
}

func TestValuesEqualMultifield(t *testing.T) {
	r := NewRegistry()

	m1 := Multifield{r.Integer(1), r.Symbol("a")}
	m2 := Multifield{r.Integer(1), r.Symbol("a")}
	m3 := Multifield{r.Integer(1)}

	assert.True(t, ValuesEqual(m1, m2))
	assert.False(t, ValuesEqual(m1, m3))
	assert.False(t, ValuesEqual(m1, r.Integer(1)))
	assert.Equal(t, ValueHash(m1), ValueHash(m2))
}
