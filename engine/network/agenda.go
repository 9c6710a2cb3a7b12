package network

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/utils"
)

// Activation is a (rule, basis) pair eligible to fire
type Activation struct {
	Rule     *Rule
	Basis    *PartialMatch
	Salience int
	TimeTag  uint64
	RandomID uint64

	Prev  *Activation
	Next  *Activation
	Group *SalienceGroup
}

// SalienceGroup is one bucket of the agenda holding every activation
// of one salience, so insertion locates its place without an O(N)
// agenda scan.
type SalienceGroup struct {
	Salience int
	First    *Activation
	Last     *Activation
}

// Agenda is the per-module activation list kept in strategy order:
// primary key salience descending, secondary key per the active
// strategy.
type Agenda struct {
	Module *constructs.Module
	groups *treemap.Map // salience -> *SalienceGroup, descending
	count  int
}

func descendingInt(a, b interface{}) int {
	x := a.(int)
	y := b.(int)
	switch {
	case x > y:
		return -1
	case x < y:
		return 1
	}
	return 0
}

// NewAgenda creates an empty agenda for the module
func NewAgenda(m *constructs.Module) *Agenda {
	return &Agenda{
		Module: m,
		groups: treemap.NewWith(descendingInt),
	}
}

// Count returns the number of pending activations
func (a *Agenda) Count() int {
	return a.count
}

// Activations snapshots the agenda in firing order
func (a *Agenda) Activations() []*Activation {
	out := make([]*Activation, 0, a.count)
	it := a.groups.Iterator()
	for it.Next() {
		g := it.Value().(*SalienceGroup)
		for act := g.First; act != nil; act = act.Next {
			out = append(out, act)
		}
	}
	return out
}

// Next returns the highest-priority activation without removing it
func (a *Agenda) Next() *Activation {
	_, v := a.groups.Min()
	if v == nil {
		return nil
	}
	return v.(*SalienceGroup).First
}

// agendaFor returns (creating on demand) the agenda of the basis
// rule's module.
func (n *Network) agendaFor(r *Rule) *Agenda {
	m := r.Module()
	if m == nil {
		m = n.Constructs.Current
	}
	ag, ok := n.Agendas[m]
	if !ok {
		ag = NewAgenda(m)
		n.Agendas[m] = ag
	}
	return ag
}

// addActivation creates an activation for a terminal emission and
// inserts it at its strategy position.
func (n *Network) addActivation(r *Rule, basis *PartialMatch) {
	act := &Activation{
		Rule:     r,
		Basis:    basis,
		Salience: n.activationSalience(r, basis),
		TimeTag:  n.nextActivationTag(),
		RandomID: utils.RandomUint64(),
	}
	basis.TheActivation = act
	n.insertActivation(n.agendaFor(r), act)

	if r.WatchActivation && n.Logger != nil {
		n.Logger.Info("activation",
			utils.String("rule", r.Name.Lexeme()),
			utils.Int("salience", act.Salience))
	}
}

// activationSalience evaluates a dynamic salience expression when the
// rule carries one. An evaluation error pins the activation at the
// rule's last successful salience and reports once.
func (n *Network) activationSalience(r *Rule, basis *PartialMatch) int {
	if r.DynamicSalience == nil || !n.DynamicSalienceEnabled {
		return r.Salience
	}
	saved := n.Ctx.Push(&matchFrame{pm: basis}, nil, nil)
	v := atoms.Evaluate(&n.Ctx, r.DynamicSalience)
	errored := n.Ctx.EvalError
	n.Ctx.EvalError = false
	n.Ctx.Pop(saved)

	if errored {
		n.reportSalienceError(r)
		return r.Salience
	}
	av, ok := v.(*atoms.Atom)
	if !ok {
		n.reportSalienceError(r)
		return r.Salience
	}
	f, ok := av.Numeric()
	if !ok {
		n.reportSalienceError(r)
		return r.Salience
	}
	s := int(f)
	if s < MinSalience {
		s = MinSalience
	} else if s > MaxSalience {
		s = MaxSalience
	}
	r.Salience = s
	return s
}

// insertActivation places the activation inside its salience group
// according to the active strategy.
func (n *Network) insertActivation(ag *Agenda, act *Activation) {
	var g *SalienceGroup
	if v, ok := ag.groups.Get(act.Salience); ok {
		g = v.(*SalienceGroup)
	} else {
		g = &SalienceGroup{Salience: act.Salience}
		ag.groups.Put(act.Salience, g)
	}
	act.Group = g

	after := n.Strategy.placeAfter(g, act)
	if after == nil {
		// Front of group
		act.Next = g.First
		if g.First != nil {
			g.First.Prev = act
		}
		g.First = act
		if g.Last == nil {
			g.Last = act
		}
	} else {
		act.Prev = after
		act.Next = after.Next
		if after.Next != nil {
			after.Next.Prev = act
		} else {
			g.Last = act
		}
		after.Next = act
	}
	ag.count++
}

// removeActivation unlinks the activation from its agenda
func (n *Network) removeActivation(act *Activation) {
	if act.Group == nil {
		return
	}
	g := act.Group
	if g.First == act {
		g.First = act.Next
	}
	if g.Last == act {
		g.Last = act.Prev
	}
	if act.Prev != nil {
		act.Prev.Next = act.Next
	}
	if act.Next != nil {
		act.Next.Prev = act.Prev
	}
	act.Prev = nil
	act.Next = nil
	act.Group = nil

	ag := n.agendaFor(act.Rule)
	if g.First == nil {
		ag.groups.Remove(g.Salience)
	}
	ag.count--

	if act.Basis != nil {
		act.Basis.TheActivation = nil
	}
}

// PopNext removes and returns the next activation to fire from the
// module's agenda.
func (n *Network) PopNext(m *constructs.Module) *Activation {
	ag, ok := n.Agendas[m]
	if !ok {
		return nil
	}
	act := ag.Next()
	if act == nil {
		return nil
	}
	n.removeActivation(act)
	return act
}

// RefreshAgenda re-evaluates the salience of every pending activation
// of the rule and re-inserts each in its new position.
func (n *Network) RefreshAgenda(r *Rule) {
	ag := n.agendaFor(r)
	disjuncts := make(map[*Rule]bool)
	r.EachDisjunct(func(d *Rule) { disjuncts[d] = true })
	var pending []*Activation
	for _, act := range ag.Activations() {
		if disjuncts[act.Rule] {
			pending = append(pending, act)
		}
	}
	for _, act := range pending {
		n.removeActivation(act)
		act.Salience = n.activationSalience(act.Rule, act.Basis)
		if act.Basis != nil {
			act.Basis.TheActivation = act
		}
		n.insertActivation(ag, act)
	}
}

// SetStrategy switches the conflict-resolution strategy and re-sorts
// every agenda.
func (n *Network) SetStrategy(s Strategy) {
	n.Strategy = s
	for _, ag := range n.Agendas {
		acts := ag.Activations()
		for _, act := range acts {
			n.removeActivation(act)
		}
		for _, act := range acts {
			if act.Basis != nil {
				act.Basis.TheActivation = act
			}
			n.insertActivation(ag, act)
		}
	}
}
