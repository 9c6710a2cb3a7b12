package engine

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/facts"
	"github.com/nmxmxh/rete_v1/engine/network"
)

// Helpers shared by the scenario tests

func newPointEnv(t *testing.T) (*Env, *facts.Template) {
	t.Helper()
	env := New()
	tpl, err := env.DefTemplate("point",
		facts.SlotSpec{Name: "x"},
		facts.SlotSpec{Name: "y"})
	require.NoError(t, err)
	return env, tpl
}

func assertPoint(t *testing.T, env *Env, tpl *facts.Template, x, y int64) *facts.Fact {
	t.Helper()
	f, err := env.Assert(env.Facts.NewFact(tpl).
		Set("x", env.Atoms.Integer(x)).
		Set("y", env.Atoms.Integer(y)))
	require.NoError(t, err)
	return f
}

func agendaRules(env *Env) []string {
	var names []string
	for _, act := range env.Agenda() {
		names = append(names, act.Rule.Name.Lexeme())
	}
	return names
}

func TestSimpleMatch(t *testing.T) {
	env, tpl := newPointEnv(t)

	x := env.Atoms.Symbol("x")
	y := env.Atoms.Symbol("y")
	_, err := env.AddRule(&network.RuleDef{
		Name: "record",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).
				Slot("x", facts.Var(x)).
				Slot("y", facts.Var(y)).CE(),
		},
	})
	require.NoError(t, err)

	p1 := assertPoint(t, env, tpl, 1, 2)
	assertPoint(t, env, tpl, 3, 4)

	// Two activations, one per point
	require.Len(t, env.Agenda(), 2)

	// Retracting an unfired point removes its activation
	require.NoError(t, env.Retract(p1))
	assert.Len(t, env.Agenda(), 1)

	// Firing drains the agenda
	assert.Equal(t, 1, env.Run(-1))
	assert.Empty(t, env.Agenda())

	// Retracting after firing has no further agenda effect
	remaining := env.Facts.Facts()
	require.Len(t, remaining, 1)
	require.NoError(t, env.Retract(remaining[0]))
	assert.Empty(t, env.Agenda())
}

func newTagEnv(t *testing.T) (*Env, *facts.Template) {
	t.Helper()
	env := New()
	tpl, err := env.DefTemplate("tag", facts.SlotSpec{Name: "name"})
	require.NoError(t, err)
	return env, tpl
}

func assertTag(t *testing.T, env *Env, tpl *facts.Template, name string) *facts.Fact {
	t.Helper()
	f, err := env.Assert(env.Facts.NewFact(tpl).Set("name", env.Atoms.Symbol(name)))
	require.NoError(t, err)
	return f
}

func TestNegatedPattern(t *testing.T) {
	env, tpl := newTagEnv(t)

	_, err := env.AddRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("a"))).CE(),
			network.NotCE(
				env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("b"))).CE(),
			),
		},
	})
	require.NoError(t, err)

	// 1. (a) alone satisfies the rule
	assertTag(t, env, tpl, "a")
	require.Len(t, env.Agenda(), 1)

	// 2. (b) blocks it
	b := assertTag(t, env, tpl, "b")
	assert.Empty(t, env.Agenda())

	// 3. retracting (b) restores exactly one activation
	require.NoError(t, env.Retract(b))
	assert.Len(t, env.Agenda(), 1)
}

func abcEnv(t *testing.T) (*Env, *facts.Template, *facts.Template, *facts.Template) {
	t.Helper()
	env := New()
	mk := func(name string) *facts.Template {
		tpl, err := env.DefTemplate(name, facts.SlotSpec{Name: "v"})
		require.NoError(t, err)
		return tpl
	}
	return env, mk("A"), mk("B"), mk("C")
}

func assertV(t *testing.T, env *Env, tpl *facts.Template, v int64) *facts.Fact {
	t.Helper()
	f, err := env.Assert(env.Facts.NewFact(tpl).Set("v", env.Atoms.Integer(v)))
	require.NoError(t, err)
	return f
}

func TestSharedPrefixIncrementalReset(t *testing.T) {
	env, a, b, c := abcEnv(t)
	x := env.Atoms.Symbol("x")

	r1, err := env.AddRule(&network.RuleDef{
		Name: "R1",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(b).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	assertV(t, env, a, 1)

	r2, err := env.AddRule(&network.RuleDef{
		Name: "R2",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(c).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	c1 := network.JoinChainOf(r1)
	c2 := network.JoinChainOf(r2)

	// The A alpha and the first join are shared
	require.Same(t, c1[0], c2[0])

	// R2's second join was primed with the ?x=1 partial match without
	// re-driving the assertion: the shared alpha memory still holds a
	// single entry.
	left, _ := env.Net.JoinMemoryContents(c2[1])
	require.Len(t, left, 1)
	assert.Len(t, left[0].Binds, 1)

	alpha := c2[0].RightSideEntry.(*network.AlphaNode)
	assert.Equal(t, uint64(1), alpha.Memory.Count)

	// The primed state behaves: asserting (C 1) activates R2
	assertV(t, env, c, 1)
	assert.Contains(t, agendaRules(env), "R2")
}

func TestIncrementalResetLaw(t *testing.T) {
	ruleDef := func(env *Env, a, b *facts.Template) *network.RuleDef {
		x := env.Atoms.Symbol("x")
		return &network.RuleDef{
			Name: "R",
			LHS: []*network.ParsedCE{
				env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
				env.Facts.Pattern(b).Slot("v", facts.Var(x)).CE(),
			},
		}
	}

	// Engine 1: rule before entities
	env1, a1, b1, _ := abcEnv(t)
	_, err := env1.AddRule(ruleDef(env1, a1, b1))
	require.NoError(t, err)
	assertV(t, env1, a1, 1)
	assertV(t, env1, b1, 1)
	assertV(t, env1, a1, 2)

	// Engine 2: rule after the same entity stream
	env2, a2, b2, _ := abcEnv(t)
	assertV(t, env2, a2, 1)
	assertV(t, env2, b2, 1)
	assertV(t, env2, a2, 2)
	_, err = env2.AddRule(ruleDef(env2, a2, b2))
	require.NoError(t, err)

	assert.Equal(t, agendaRules(env1), agendaRules(env2))
	assert.Empty(t, cmp.Diff(memoryShape(env1), memoryShape(env2)))
}

// memoryShape derives a comparable snapshot of every rule's join
// memories.
func memoryShape(env *Env) map[string][][2]int {
	shape := make(map[string][][2]int)
	for _, m := range env.Constructs.Modules {
		for cur := m.Item(env.Net.RuleType).First; cur != nil; cur = cur.ConstructHeader().Next {
			rule := cur.(*network.Rule)
			var dims [][2]int
			for _, j := range network.JoinChainOf(rule) {
				l, r := env.Net.JoinMemoryContents(j)
				dims = append(dims, [2]int{len(l), len(r)})
			}
			shape[rule.Name.Lexeme()] = dims
		}
	}
	return shape
}

func TestSalienceOrder(t *testing.T) {
	env, tpl := newTagEnv(t)

	pat := func() *network.ParsedCE {
		return env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("go"))).CE()
	}
	_, err := env.AddRule(&network.RuleDef{Name: "low", Salience: 0, LHS: []*network.ParsedCE{pat()}})
	require.NoError(t, err)
	_, err = env.AddRule(&network.RuleDef{Name: "high", Salience: 100, LHS: []*network.ParsedCE{pat()}})
	require.NoError(t, err)

	assertTag(t, env, tpl, "go")
	require.Equal(t, []string{"high", "low"}, agendaRules(env))

	var fired []string
	env.opts.FireAction = func(e *Env, act *network.Activation) error {
		fired = append(fired, act.Rule.Name.Lexeme())
		return nil
	}
	env.Run(-1)
	assert.Equal(t, []string{"high", "low"}, fired)
}

func TestExistsPattern(t *testing.T) {
	env := New()
	tpl, err := env.DefTemplate("tag",
		facts.SlotSpec{Name: "name"},
		facts.SlotSpec{Name: "n"})
	require.NoError(t, err)
	tag := func(name string, n int64) *facts.Fact {
		f, err := env.Assert(env.Facts.NewFact(tpl).
			Set("name", env.Atoms.Symbol(name)).
			Set("n", env.Atoms.Integer(n)))
		require.NoError(t, err)
		return f
	}

	_, err = env.AddRule(&network.RuleDef{
		Name: "present",
		LHS: []*network.ParsedCE{
			network.ExistsCE(
				env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("p"))).CE(),
			),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, env.Agenda())

	// Activates exactly once no matter how many matches exist
	f1 := tag("p", 1)
	require.Len(t, env.Agenda(), 1)
	f2 := tag("p2", 1)
	_ = f2
	f3 := tag("p", 2)
	require.Len(t, env.Agenda(), 1)
	_ = f3

	// Still one activation while a match remains
	require.NoError(t, env.Retract(f1))
	assert.Len(t, env.Agenda(), 1)

	// Gone only when the last match goes
	for _, f := range env.Facts.Facts() {
		require.NoError(t, env.Retract(f))
	}
	assert.Empty(t, env.Agenda())
}

func TestRoundTrip(t *testing.T) {
	env, a, b, c := abcEnv(t)
	x := env.Atoms.Symbol("x")

	_, err := env.AddRule(&network.RuleDef{
		Name: "R1",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(b).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)
	_, err = env.AddRule(&network.RuleDef{
		Name: "R2",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(c).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	assertV(t, env, a, 1)
	assertV(t, env, b, 1)

	wantAgenda := agendaRules(env)
	wantShape := memoryShape(env)
	require.Equal(t, []string{"R1"}, wantAgenda)

	var buf bytes.Buffer
	require.NoError(t, env.Bsave(&buf))

	// Load into a fresh environment
	env2 := New()
	require.NoError(t, env2.Bload(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, 2, env2.Facts.Count())
	assert.Equal(t, wantAgenda, agendaRules(env2))
	assert.Empty(t, cmp.Diff(wantShape, memoryShape(env2)))

	// The reloaded engine keeps matching
	tplC := env2.Facts.TemplateByID(2)
	require.NotNil(t, tplC)
	_, err = env2.Assert(env2.Facts.NewFact(tplC).Set("v", env2.Atoms.Integer(1)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"R1", "R2"}, agendaRules(env2))
}

func TestRoundTripCompressed(t *testing.T) {
	env, tpl := newTagEnv(t)
	_, err := env.AddRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("z"))).CE(),
		},
	})
	require.NoError(t, err)
	assertTag(t, env, tpl, "z")

	var buf bytes.Buffer
	require.NoError(t, env.BsaveCompressed(&buf))

	env2 := New()
	require.NoError(t, env2.Bload(bytes.NewReader(buf.Bytes())))
	assert.Len(t, env2.Agenda(), 1)
}

func TestBloadFormatMismatch(t *testing.T) {
	env := New()
	err := env.Bload(bytes.NewReader([]byte("not an image at all, definitely")))
	require.Error(t, err)

	// The engine is left in its cleared state and stays usable
	tpl, err := env.DefTemplate("t", facts.SlotSpec{Name: "v"})
	require.NoError(t, err)
	_, err = env.Assert(env.Facts.NewFact(tpl).Set("v", env.Atoms.Integer(1)))
	require.NoError(t, err)
}

func TestRetractionIdempotence(t *testing.T) {
	env, tpl := newPointEnv(t)
	x := env.Atoms.Symbol("x")
	_, err := env.AddRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("x", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	f := assertPoint(t, env, tpl, 1, 1)
	require.Len(t, env.Agenda(), 1)

	require.NoError(t, env.Retract(f))
	require.NoError(t, env.Retract(f))
	assert.Empty(t, env.Agenda())
	assert.Equal(t, 0, env.Facts.Count())
}

func TestAssertRetractInverse(t *testing.T) {
	env, a, b, _ := abcEnv(t)
	x := env.Atoms.Symbol("x")
	_, err := env.AddRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(b).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	assertV(t, env, a, 7)
	before := agendaRules(env)
	shapeBefore := memoryShape(env)

	f := assertV(t, env, b, 7)
	require.Len(t, env.Agenda(), 1)
	require.NoError(t, env.Retract(f))

	assert.Equal(t, before, agendaRules(env))
	assert.Equal(t, shapeBefore, memoryShape(env))
}

func TestTestCE(t *testing.T) {
	env, tpl := newPointEnv(t)
	x := env.Atoms.Symbol("x")

	_, err := env.AddRule(&network.RuleDef{
		Name: "small",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("x", facts.Var(x)).CE(),
			network.TestCE(atoms.Call(env.Atoms.Function("<"),
				atoms.Var(x),
				atoms.Const(env.Atoms.Integer(10)))),
		},
	})
	require.NoError(t, err)

	assertPoint(t, env, tpl, 5, 0)
	require.Len(t, env.Agenda(), 1)

	assertPoint(t, env, tpl, 15, 0)
	assert.Len(t, env.Agenda(), 1)
}

func TestForallAsNotAndNot(t *testing.T) {
	env, a, b, _ := abcEnv(t)
	x := env.Atoms.Symbol("x")

	// (forall (A ?x) (B ?x)) as (not (and (A ?x) (not (B ?x))))
	_, err := env.AddRule(&network.RuleDef{
		Name: "all-covered",
		LHS: []*network.ParsedCE{
			network.NotCE(
				env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
				network.NotCE(env.Facts.Pattern(b).Slot("v", facts.Var(x)).CE()),
			),
		},
	})
	require.NoError(t, err)

	// Vacuously true with no A facts
	require.Len(t, env.Agenda(), 1)

	// An uncovered A breaks it
	fa := assertV(t, env, a, 1)
	assert.Empty(t, env.Agenda())

	// Covering it restores the activation
	fb := assertV(t, env, b, 1)
	assert.Len(t, env.Agenda(), 1)

	// Removing the cover breaks it again
	require.NoError(t, env.Retract(fb))
	assert.Empty(t, env.Agenda())

	// Removing the A restores vacuous truth
	require.NoError(t, env.Retract(fa))
	assert.Len(t, env.Agenda(), 1)
}

func TestDegenerateBetaMemory(t *testing.T) {
	// Without join variables both memories stay single-bucket; the
	// cross product must still be complete.
	env, a, b, _ := abcEnv(t)
	x := env.Atoms.Symbol("x")
	y := env.Atoms.Symbol("y")

	_, err := env.AddRule(&network.RuleDef{
		Name: "cross",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.Var(x)).CE(),
			env.Facts.Pattern(b).Slot("v", facts.Var(y)).CE(),
		},
	})
	require.NoError(t, err)

	assertV(t, env, a, 1)
	assertV(t, env, a, 2)
	assertV(t, env, b, 10)
	assertV(t, env, b, 20)

	assert.Len(t, env.Agenda(), 4)
}

func TestMultifieldPattern(t *testing.T) {
	env := New()
	tpl, err := env.DefTemplate("msg", facts.SlotSpec{Name: "body", Multifield: true})
	require.NoError(t, err)

	rest := env.Atoms.Symbol("rest")
	_, err = env.AddRule(&network.RuleDef{
		Name: "tagged",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).
				Slot("body", facts.Const(env.Atoms.Symbol("hdr")), facts.MVar(rest)).CE(),
		},
	})
	require.NoError(t, err)

	_, err = env.Assert(env.Facts.NewFact(tpl).Set("body",
		env.Atoms.Symbol("hdr"), env.Atoms.Integer(1), env.Atoms.Integer(2)))
	require.NoError(t, err)
	require.Len(t, env.Agenda(), 1)

	// Wrong head symbol fails the selector
	_, err = env.Assert(env.Facts.NewFact(tpl).Set("body",
		env.Atoms.Symbol("other"), env.Atoms.Integer(1)))
	require.NoError(t, err)
	assert.Len(t, env.Agenda(), 1)
}

func TestMultifieldJoinEquality(t *testing.T) {
	env := New()
	a, err := env.DefTemplate("A", facts.SlotSpec{Name: "v", Multifield: true})
	require.NoError(t, err)
	b, err := env.DefTemplate("B", facts.SlotSpec{Name: "v", Multifield: true})
	require.NoError(t, err)

	m := env.Atoms.Symbol("m")
	_, err = env.AddRule(&network.RuleDef{
		Name: "same-body",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(a).Slot("v", facts.MVar(m)).CE(),
			env.Facts.Pattern(b).Slot("v", facts.MVar(m)).CE(),
		},
	})
	require.NoError(t, err)

	_, err = env.Assert(env.Facts.NewFact(a).Set("v", env.Atoms.Integer(1), env.Atoms.Integer(2)))
	require.NoError(t, err)
	_, err = env.Assert(env.Facts.NewFact(b).Set("v", env.Atoms.Integer(1), env.Atoms.Integer(2)))
	require.NoError(t, err)
	require.Len(t, env.Agenda(), 1)

	_, err = env.Assert(env.Facts.NewFact(b).Set("v", env.Atoms.Integer(1)))
	require.NoError(t, err)
	assert.Len(t, env.Agenda(), 1)
}

func TestDynamicSalience(t *testing.T) {
	env, tpl := newTagEnv(t)

	_, err := env.AddRule(&network.RuleDef{
		Name:            "dyn",
		Salience:        0,
		DynamicSalience: atoms.Const(env.Atoms.Integer(50)),
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("d"))).CE(),
		},
	})
	require.NoError(t, err)

	assertTag(t, env, tpl, "d")
	acts := env.Agenda()
	require.Len(t, acts, 1)
	assert.Equal(t, 50, acts[0].Salience)
}

func TestLogicalSupport(t *testing.T) {
	env, tpl := newTagEnv(t)
	derived, err := env.DefTemplate("derived", facts.SlotSpec{Name: "v"})
	require.NoError(t, err)

	env.opts.FireAction = func(e *Env, act *network.Activation) error {
		_, err := e.Facts.AssertLogical(
			e.Facts.NewFact(derived).Set("v", e.Atoms.Integer(1)),
			act.Basis)
		return err
	}

	_, err = env.AddRule(&network.RuleDef{
		Name: "derive",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("base"))).CE(),
		},
	})
	require.NoError(t, err)

	base := assertTag(t, env, tpl, "base")
	env.Run(-1)
	require.Equal(t, 2, env.Facts.Count())

	// Retracting the basis takes the derived fact with it
	require.NoError(t, env.Retract(base))
	assert.Equal(t, 0, env.Facts.Count())
}

func TestRemoveRule(t *testing.T) {
	env, tpl := newTagEnv(t)
	r, err := env.AddRule(&network.RuleDef{
		Name: "gone",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("g"))).CE(),
		},
	})
	require.NoError(t, err)

	assertTag(t, env, tpl, "g")
	require.Len(t, env.Agenda(), 1)

	require.NoError(t, env.RemoveRule(r))
	assert.Empty(t, env.Agenda())
	assert.Equal(t, 0, env.Net.TerminalCount(env.Facts.Parser))

	// Asserting afterwards activates nothing
	assertTag(t, env, tpl, "g")
	assert.Empty(t, env.Agenda())
}

func TestDisjuncts(t *testing.T) {
	env, tpl := newTagEnv(t)

	// One rule, two or-branches sharing a header
	r, err := env.AddRule(&network.RuleDef{
		Name: "either",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("left"))).CE(),
		},
		OtherDisjuncts: [][]*network.ParsedCE{{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("right"))).CE(),
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, r.Disjunct)

	assertTag(t, env, tpl, "left")
	assertTag(t, env, tpl, "right")
	assert.Equal(t, []string{"either", "either"}, agendaRules(env))

	// Removing the rule takes both branches' activations
	require.NoError(t, env.RemoveRule(r))
	assert.Empty(t, env.Agenda())
}

func TestRefreshAgenda(t *testing.T) {
	env, tpl := newTagEnv(t)

	r, err := env.AddRule(&network.RuleDef{
		Name:     "re",
		Salience: 10,
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Const(env.Atoms.Symbol("k"))).CE(),
		},
	})
	require.NoError(t, err)
	assertTag(t, env, tpl, "k")

	acts := env.Agenda()
	require.Len(t, acts, 1)
	assert.Equal(t, 10, acts[0].Salience)

	// A changed salience takes effect on refresh
	r.Salience = -5
	env.Net.RefreshAgenda(r)
	acts = env.Agenda()
	require.Len(t, acts, 1)
	assert.Equal(t, -5, acts[0].Salience)
}

func TestBreadthStrategy(t *testing.T) {
	env, tpl := newTagEnv(t)
	env.Net.SetStrategy(network.StrategyBreadth)

	x := env.Atoms.Symbol("x")
	_, err := env.AddRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			env.Facts.Pattern(tpl).Slot("name", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)

	assertTag(t, env, tpl, "first")
	assertTag(t, env, tpl, "second")

	acts := env.Agenda()
	require.Len(t, acts, 2)
	// Breadth: oldest first
	assert.Less(t, acts[0].TimeTag, acts[1].TimeTag)

	// Depth: newest first after a re-sort
	env.Net.SetStrategy(network.StrategyDepth)
	acts = env.Agenda()
	require.Len(t, acts, 2)
	assert.Greater(t, acts[0].TimeTag, acts[1].TimeTag)
}
