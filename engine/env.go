package engine

import (
	"io"
	"os"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/binimage"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/facts"
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

// Env is one engine environment: the atom tables, the construct
// registry, the Rete network, the fact store, and the binary item
// registry, wired together and driven from a single goroutine.
type Env struct {
	ID string

	Atoms      *atoms.Registry
	Constructs *constructs.Registry
	Net        *network.Network
	Facts      *facts.Store
	Bin        *binimage.Registry
	Logger     *utils.Logger

	opts  Options
	fired uint64
}

// New creates an environment with the standard flavour and binary
// items registered.
func New(options ...Option) *Env {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.DefaultLogger("engine")
	}

	reg := atoms.NewRegistry()
	cons := constructs.NewRegistry(reg, logger.Scoped("constructs"))
	net := network.New(reg, cons, logger.Scoped("rete"))
	fs := facts.NewStore(reg, cons, net, logger.Scoped("facts"))

	net.Strategy = opts.Strategy
	net.ResizingAllowed = opts.BetaResizing
	net.DynamicSalienceEnabled = opts.DynamicSalience

	return &Env{
		ID:         utils.GenerateID()[:8],
		Atoms:      reg,
		Constructs: cons,
		Net:        net,
		Facts:      fs,
		Bin:        binimage.StandardRegistry(),
		Logger:     logger,
		opts:       opts,
	}
}

// DefTemplate defines a fact template in the current module
func (e *Env) DefTemplate(name string, slots ...facts.SlotSpec) (*facts.Template, error) {
	return e.Facts.DefTemplate(name, slots...)
}

// AddRule compiles a rule definition into the network and primes its
// fresh nodes from the entities already asserted.
func (e *Env) AddRule(def *network.RuleDef) (*network.Rule, error) {
	r, err := e.Net.BuildRule(def)
	if err != nil {
		return nil, err
	}
	e.Net.IncrementalReset(r)
	e.sweep()
	e.reportErrors("defrule")
	return r, nil
}

// RemoveRule detaches a rule; refused while propagation is running
func (e *Env) RemoveRule(r *network.Rule) error {
	err := e.Net.RemoveRule(r)
	if err == nil {
		e.sweep()
	}
	return err
}

// Assert drives a fact into the engine
func (e *Env) Assert(f *facts.Fact) (*facts.Fact, error) {
	asserted, err := e.Facts.Assert(f)
	e.Net.FlushGarbage()
	e.reportErrors("assert")
	return asserted, err
}

// Retract removes a fact from the engine
func (e *Env) Retract(f *facts.Fact) error {
	err := e.Facts.Retract(f)
	e.Net.FlushGarbage()
	e.sweep()
	e.reportErrors("retract")
	return err
}

// Agenda snapshots the current module's pending activations in firing
// order.
func (e *Env) Agenda() []*network.Activation {
	ag, ok := e.Net.Agendas[e.Constructs.Current]
	if !ok {
		return nil
	}
	return ag.Activations()
}

// Run fires activations until the agenda empties or the limit is
// reached; a negative limit means no limit. Returns the number of
// rules fired.
func (e *Env) Run(limit int) int {
	fired := 0
	for limit < 0 || fired < limit {
		act := e.Net.PopNext(e.Constructs.Current)
		if act == nil {
			break
		}
		e.fire(act)
		fired++
	}
	return fired
}

// FireNext fires the single highest-priority activation
func (e *Env) FireNext() bool {
	act := e.Net.PopNext(e.Constructs.Current)
	if act == nil {
		return false
	}
	e.fire(act)
	return true
}

func (e *Env) fire(act *network.Activation) {
	rule := act.Rule
	if rule.WatchFiring {
		e.Logger.Info("fire",
			utils.String("rule", rule.Name.Lexeme()),
			utils.Uint64("id", act.TimeTag))
	}
	rule.Executing = true
	if act.Basis != nil {
		act.Basis.Busy = true
	}
	if e.opts.FireAction != nil {
		if err := e.opts.FireAction(e, act); err != nil {
			e.Logger.Error("[ENGINE 1] rule action failed",
				utils.String("rule", rule.Name.Lexeme()),
				utils.Err(err))
		}
	}
	if act.Basis != nil {
		act.Basis.Busy = false
	}
	rule.Executing = false
	e.fired++

	// Safe point between fires
	e.Net.FlushGarbage()
	e.sweep()
	e.reportErrors("run")
}

// Fired reports the number of rules fired over the environment's
// lifetime.
func (e *Env) Fired() uint64 {
	return e.fired
}

// Reset retracts every fact, leaving rules and templates in place
func (e *Env) Reset() {
	e.Facts.RetractAll()
	e.Net.FlushGarbage()
	e.sweep()
}

// Clear tears the environment down to its initial state, invoking
// every binary item's clear in reverse dependency order.
func (e *Env) Clear() {
	img := e.image()
	e.Bin.Clear(img)
	e.Net.FlushGarbage()
	e.sweep()
}

func (e *Env) image() *binimage.Image {
	return binimage.NewImage(e.Atoms, e.Constructs, e.Net, e.Facts, e.Logger)
}

// Bsave writes the environment's binary image
func (e *Env) Bsave(w io.Writer) error {
	return e.Bin.Save(e.image(), w)
}

// BsaveCompressed writes a brotli-compressed image
func (e *Env) BsaveCompressed(w io.Writer) error {
	return e.Bin.SaveCompressed(e.image(), w)
}

// Bload clears the environment and reads an image written by Bsave.
// On a format mismatch the engine is left in its cleared state.
func (e *Env) Bload(r io.Reader) error {
	e.Clear()
	if err := e.Bin.LoadAuto(e.image(), r); err != nil {
		e.Clear()
		return err
	}
	e.sweep()
	return nil
}

// BsaveFile writes the image to a file
func (e *Env) BsaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.Bsave(f)
}

// BloadFile reads an image from a file
func (e *Env) BloadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.Bload(f)
}

// EvalErrorOccurred reports and clears the latched evaluation error
func (e *Env) EvalErrorOccurred() bool {
	was := e.Net.ErrorFlag
	e.Net.ClearErrorFlag()
	return was
}

func (e *Env) sweep() {
	if !e.Net.JoinOperationInProgress {
		e.Atoms.Sweep()
	}
}

func (e *Env) reportErrors(op string) {
	if e.Net.ErrorFlag {
		e.Logger.Warn("[ENGINE 2] evaluation error during " + op)
	}
}
