package atoms

// registerBuiltins installs the primitive functions network tests are
// compiled from. The LHS analyzer only ever emits these; RHS actions
// belong to the external interpreter.
func registerBuiltins(r *Registry) {
	def := func(name string, h func(*Context, *Expr) Value) {
		fn := &Function{Name: r.Symbol(name), Handler: h}
		fn.Name.permanent = true
		r.Functions[name] = fn
	}

	def("eq", func(c *Context, args *Expr) Value {
		if args == nil {
			return c.Reg.True
		}
		first := Evaluate(c, args)
		for a := args.Next; a != nil; a = a.Next {
			if !ValuesEqual(first, Evaluate(c, a)) {
				return c.Reg.False
			}
		}
		return c.Reg.True
	})

	def("neq", func(c *Context, args *Expr) Value {
		if args == nil {
			return c.Reg.True
		}
		first := Evaluate(c, args)
		for a := args.Next; a != nil; a = a.Next {
			if ValuesEqual(first, Evaluate(c, a)) {
				return c.Reg.False
			}
		}
		return c.Reg.True
	})

	// and/or evaluate arguments lazily for short-circuit discrimination
	def("and", func(c *Context, args *Expr) Value {
		for a := args; a != nil; a = a.Next {
			if c.IsFalse(Evaluate(c, a)) {
				return c.Reg.False
			}
		}
		return c.Reg.True
	})

	def("or", func(c *Context, args *Expr) Value {
		for a := args; a != nil; a = a.Next {
			if !c.IsFalse(Evaluate(c, a)) {
				return c.Reg.True
			}
		}
		return c.Reg.False
	})

	def("not", func(c *Context, args *Expr) Value {
		return c.Truth(c.IsFalse(Evaluate(c, args)))
	})

	numeric := func(name string, cmp func(a, b float64) bool) {
		def(name, func(c *Context, args *Expr) Value {
			if args == nil || args.Next == nil {
				c.EvalError = true
				return c.Reg.False
			}
			prev, ok := numericValue(Evaluate(c, args))
			if !ok {
				c.EvalError = true
				return c.Reg.False
			}
			for a := args.Next; a != nil; a = a.Next {
				cur, ok := numericValue(Evaluate(c, a))
				if !ok {
					c.EvalError = true
					return c.Reg.False
				}
				if !cmp(prev, cur) {
					return c.Reg.False
				}
				prev = cur
			}
			return c.Reg.True
		})
	}

	numeric("<", func(a, b float64) bool { return a < b })
	numeric(">", func(a, b float64) bool { return a > b })
	numeric("<=", func(a, b float64) bool { return a <= b })
	numeric(">=", func(a, b float64) bool { return a >= b })
	numeric("=", func(a, b float64) bool { return a == b })
	numeric("<>", func(a, b float64) bool { return a != b })

	def("length$", func(c *Context, args *Expr) Value {
		v := Evaluate(c, args)
		if m, ok := v.(Multifield); ok {
			return c.Reg.Integer(int64(len(m)))
		}
		c.EvalError = true
		return c.Reg.False
	})
}

func numericValue(v Value) (float64, bool) {
	a, ok := v.(*Atom)
	if !ok {
		return 0, false
	}
	return a.Numeric()
}

// Function looks up a registered primitive by name
func (r *Registry) Function(name string) *Function {
	return r.Functions[name]
}
