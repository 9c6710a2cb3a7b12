package network

import (
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/utils"
)

// Expected distinct (parser, class) pairs for the bloom prefilter
const classFilterCapacity = 4096

// Network is the Rete engine state: the pattern DAG roots, the per-
// class terminal registry, the agendas, and the propagation context.
// Everything runs on one goroutine; re-entry from rule actions is
// supported, concurrency is not.
type Network struct {
	Reg        *atoms.Registry
	Constructs *constructs.Registry
	RuleType   *constructs.ItemType
	Logger     *utils.Logger

	Ctx atoms.Context

	Parsers []*PatternParser

	// ClassTerminals lists, per class id, exactly those terminals
	// whose class bitmap bit is set for the class.
	ClassTerminals map[uint32][]*AlphaNode
	classFilter    *bloom.BloomFilter

	Agendas  map[*constructs.Module]*Agenda
	Strategy Strategy

	ResizingAllowed        bool
	DynamicSalienceEnabled bool

	JoinOperationInProgress    bool
	IncrementalResetInProgress bool

	GarbageMatches []*PartialMatch
	pool           matchPool

	entityTag     uint64
	activationTag uint64

	// LogicalRetract removes an entity whose logical support vanished;
	// the owning flavour installs it.
	LogicalRetract func(Entity)

	// ErrorFlag latches evaluation errors until the outer operation
	// reports them.
	ErrorFlag bool
}

// New creates an empty network over the given atom and construct
// registries.
func New(reg *atoms.Registry, cons *constructs.Registry, logger *utils.Logger) *Network {
	if logger == nil {
		logger = utils.DefaultLogger("rete")
	}
	n := &Network{
		Reg:                    reg,
		Constructs:             cons,
		Logger:                 logger,
		ClassTerminals:         make(map[uint32][]*AlphaNode),
		classFilter:            bloom.NewWithEstimates(classFilterCapacity, 0.01),
		Agendas:                make(map[*constructs.Module]*Agenda),
		Strategy:               StrategyDepth,
		ResizingAllowed:        true,
		DynamicSalienceEnabled: true,
	}
	n.Ctx = atoms.Context{Reg: reg}
	n.RuleType = cons.RegisterItemType("defrule")
	return n
}

// NextEntityTag stamps an entity entering the engine
func (n *Network) NextEntityTag() uint64 {
	n.entityTag++
	return n.entityTag
}

func (n *Network) nextActivationTag() uint64 {
	n.activationTag++
	return n.activationTag
}

// AssertEntity walks the entity through every relevant alpha terminal.
// The discrimination tests of every relevant terminal run before any
// memory is touched; each passing terminal then stores the entity and
// propagates it to its joins before the next passing terminal stores
// it, so one entity's alpha insertions interleave with beta propagation.
func (n *Network) AssertEntity(parser *PatternParser, ent Entity) {
	core := ent.Core()
	if core.TimeTag == 0 {
		core.TimeTag = n.NextEntityTag()
	}

	prev := n.JoinOperationInProgress
	n.JoinOperationInProgress = true
	defer func() { n.JoinOperationInProgress = prev }()

	type hit struct {
		alpha   *AlphaNode
		markers []SlotMarker
	}
	var hits []hit
	for _, a := range n.relevantTerminals(parser, ent.ClassID()) {
		if n.IncrementalResetInProgress && !a.Initialize {
			continue
		}
		markers, ok := n.driveEntityToTerminal(a, ent)
		if !ok {
			continue
		}
		hits = append(hits, hit{alpha: a, markers: markers})
	}
	for _, h := range hits {
		n.insertAlphaMatch(h.alpha, ent, h.markers)
	}
}

// reportEvalError routes a join-test evaluation error and latches the
// flag for the outer operation.
func (n *Network) reportEvalError(j *JoinNode) {
	if !n.ErrorFlag {
		n.Logger.Error(fmt.Sprintf("[NETWORK %d] join test evaluation error", j.Depth))
	}
	n.ErrorFlag = true
}

// reportSalienceError routes a dynamic salience evaluation error
func (n *Network) reportSalienceError(r *Rule) {
	n.Logger.Error(fmt.Sprintf("[AGENDA 1] dynamic salience evaluation error for %s", r.Name.Lexeme()))
	n.ErrorFlag = true
}

// ClearErrorFlag resets the latched evaluation error after the outer
// operation has reported it.
func (n *Network) ClearErrorFlag() {
	n.ErrorFlag = false
}

// JoinMemoryContents snapshots a join's memories for introspection
func (n *Network) JoinMemoryContents(j *JoinNode) (left, right []*PartialMatch) {
	return j.LeftMemory.Contents(), j.RightMemory.Contents()
}

// TerminalCount reports the live alpha terminals of a flavour
func (n *Network) TerminalCount(p *PatternParser) int {
	count := 0
	for a := p.Terminals; a != nil; a = a.NextTerminal {
		count++
	}
	return count
}
