package binimage

import (
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

// The defrule item covers the rules together with the whole Rete
// graph: pattern nodes, alpha terminals, and joins, each written as a
// flat id-encoded record.

const (
	pnMultifield = 1 << 0
	pnEndSlot    = 1 << 1
	pnSelector   = 1 << 2
	pnFromEnd    = 1 << 3
	pnBlocked    = 1 << 4
)

const (
	jnFirst   = 1 << 0
	jnNegated = 1 << 1
	jnExists  = 1 << 2
	jnFromRt  = 1 << 3
	jnLogical = 1 << 4
)

const (
	rightEntryNone  = uint8(0)
	rightEntryAlpha = uint8(1)
	rightEntryJoin  = uint8(2)
)

func networkItem() *Item {
	return &Item{
		Name:     "defrule",
		Priority: 80,

		Find:        networkFind,
		SaveStorage: networkSaveStorage,
		Save:        networkSave,
		LoadStorage: networkLoadStorage,
		Load:        networkLoad,
		AfterLoad:   networkAfterLoad,
		Clear:       networkClear,
	}
}

func networkFind(img *Image) {
	img.PNodes = img.PNodes[:0]
	img.Alphas = img.Alphas[:0]
	img.Joins = img.Joins[:0]
	img.Rules = img.Rules[:0]

	for _, p := range img.Net.Parsers {
		img.collectPNodes(p.Root)
		for a := p.Terminals; a != nil; a = a.NextTerminal {
			img.AlphaID[a] = uint64(len(img.Alphas))
			a.SaveID = img.AlphaID[a]
			img.Alphas = append(img.Alphas, a)
			atoms.MarkNeeded(a.ClassBitmap)
			atoms.MarkNeeded(a.SlotBitmap)
		}
	}

	img.Net.Constructs.WalkConstructs(img.Net.RuleType, func(c constructs.Construct) {
		head, ok := c.(*network.Rule)
		if !ok {
			return
		}
		head.EachDisjunct(func(d *network.Rule) {
			img.RuleID[d] = uint64(len(img.Rules))
			img.Rules = append(img.Rules, d)
			atoms.MarkNeeded(d.Name)
		})
	})

	// Joins, deduplicated across shared prefixes, in definition order
	for _, d := range img.Rules {
		for _, j := range network.JoinChainOf(d) {
			if _, seen := img.JoinID[j]; seen {
				continue
			}
			img.JoinID[j] = uint64(len(img.Joins))
			j.SaveID = img.JoinID[j]
			img.Joins = append(img.Joins, j)
		}
	}
}

// collectPNodes assigns dense ids in depth-first order below a root
func (img *Image) collectPNodes(root *network.PatternNode) {
	var walk func(node *network.PatternNode)
	walk = func(node *network.PatternNode) {
		for child := node.NextLevel; child != nil; child = child.RightNode {
			img.PNodeID[child] = uint64(len(img.PNodes))
			child.SaveID = img.PNodeID[child]
			img.PNodes = append(img.PNodes, child)
			atoms.MarkNeeded(child.ConstantSel)
			walk(child)
		}
	}
	walk(root)
}

func networkSaveStorage(img *Image, w *Writer) {
	w.U64(uint64(len(img.PNodes)))
	w.U64(uint64(len(img.Alphas)))
	w.U64(uint64(len(img.Joins)))
	w.U64(uint64(len(img.Rules)))

	// Per-parser heads: flavour name, first root child, terminal list
	w.U64(uint64(len(img.Net.Parsers)))
	for _, p := range img.Net.Parsers {
		w.Str(p.Name.Lexeme())
		putPNodeID(img, w, p.Root.NextLevel)
		putAlphaID(img, w, p.Terminals)
	}
}

func networkSave(img *Image, w *Writer) {
	for _, node := range img.PNodes {
		var flags uint8
		if node.MultifieldNode {
			flags |= pnMultifield
		}
		if node.EndSlot {
			flags |= pnEndSlot
		}
		if node.Selector {
			flags |= pnSelector
		}
		if node.FromEnd {
			flags |= pnFromEnd
		}
		if node.Blocked {
			flags |= pnBlocked
		}
		w.U8(flags)
		w.U16(node.WhichSlot)
		w.U16(node.WhichField)
		w.U16(node.LeaveFields)
		w.U64(uint64(node.UseCount))
		img.PutAtom(w, node.ConstantSel)
		img.PutExpr(w, node.NetworkTest)
		putPNodeID(img, w, node.NextLevel)
		putPNodeParent(img, w, node.LastLevel)
		putPNodeID(img, w, node.LeftNode)
		putPNodeID(img, w, node.RightNode)
		putAlphaID(img, w, node.Alpha)
	}

	for _, a := range img.Alphas {
		img.PutAtom(w, a.ClassBitmap)
		img.PutAtom(w, a.SlotBitmap)
		img.PutExpr(w, a.RightHash)
		putPNodeID(img, w, a.PatternNode)
		putAlphaID(img, w, a.NextInGroup)
		putAlphaID(img, w, a.NextTerminal)
		w.U64(uint64(a.UseCount))
		w.U64(uint64(len(a.Joins)))
		for _, j := range a.Joins {
			w.U64(img.JoinID[j])
		}
	}

	for _, j := range img.Joins {
		var flags uint8
		if j.FirstJoin {
			flags |= jnFirst
		}
		if j.PatternIsNegated {
			flags |= jnNegated
		}
		if j.PatternIsExists {
			flags |= jnExists
		}
		if j.JoinFromTheRight {
			flags |= jnFromRt
		}
		if j.LogicalJoin {
			flags |= jnLogical
		}
		w.U8(flags)
		w.U16(j.Depth)
		w.U64(uint64(j.UseCount))
		img.PutExpr(w, j.NetworkTest)
		img.PutExpr(w, j.SecondaryNetworkTest)
		img.PutExpr(w, j.LeftHash)
		img.PutExpr(w, j.RightHash)

		switch entry := j.RightSideEntry.(type) {
		case *network.AlphaNode:
			w.U8(rightEntryAlpha)
			w.U64(img.AlphaID[entry])
		case *network.JoinNode:
			w.U8(rightEntryJoin)
			w.U64(img.JoinID[entry])
		default:
			w.U8(rightEntryNone)
			w.U64(IDNone)
		}

		putJoinID(img, w, j.LastLevel)
		if j.RuleToActivate != nil {
			w.U64(img.RuleID[j.RuleToActivate])
		} else {
			w.U64(IDNone)
		}

		links := 0
		for link := j.JoinsFromHere; link != nil; link = link.Next {
			links++
		}
		w.U64(uint64(links))
		for link := j.JoinsFromHere; link != nil; link = link.Next {
			w.U8(uint8(link.Enter))
			w.U64(img.JoinID[link.Join])
		}
	}

	for _, d := range img.Rules {
		img.PutAtom(w, d.Name)
		w.U64(d.Module().BsaveID)
		w.I64(int64(d.Salience))
		w.U16(d.Complexity)
		img.PutExpr(w, d.DynamicSalience)
		img.PutExpr(w, d.Actions)
		putJoinID(img, w, d.LastJoin)
		putJoinID(img, w, d.LogicalJoin)
		if d.Disjunct != nil {
			w.U64(img.RuleID[d.Disjunct])
		} else {
			w.U64(IDNone)
		}
	}
}

func putPNodeID(img *Image, w *Writer, node *network.PatternNode) {
	if node == nil {
		w.U64(IDNone)
		return
	}
	w.U64(img.PNodeID[node])
}

// putPNodeParent encodes a parent link; a top-level node's parent is
// the flavour root sentinel, encoded as null.
func putPNodeParent(img *Image, w *Writer, node *network.PatternNode) {
	if node == nil {
		w.U64(IDNone)
		return
	}
	if _, ok := img.PNodeID[node]; !ok {
		w.U64(IDNone)
		return
	}
	w.U64(img.PNodeID[node])
}

func putAlphaID(img *Image, w *Writer, a *network.AlphaNode) {
	if a == nil {
		w.U64(IDNone)
		return
	}
	w.U64(img.AlphaID[a])
}

func putJoinID(img *Image, w *Writer, j *network.JoinNode) {
	if j == nil {
		w.U64(IDNone)
		return
	}
	w.U64(img.JoinID[j])
}

type loadedParserHeads struct {
	parser    *network.PatternParser
	rootChild uint64
	terminals uint64
}

func networkLoadStorage(img *Image, r *Reader) error {
	nPNodes, err := r.U64()
	if err != nil {
		return err
	}
	nAlphas, err := r.U64()
	if err != nil {
		return err
	}
	nJoins, err := r.U64()
	if err != nil {
		return err
	}
	nRules, err := r.U64()
	if err != nil {
		return err
	}

	img.LoadPNodes = make([]*network.PatternNode, nPNodes)
	for i := range img.LoadPNodes {
		img.LoadPNodes[i] = &network.PatternNode{}
	}
	img.LoadAlphas = make([]*network.AlphaNode, nAlphas)
	for i := range img.LoadAlphas {
		img.LoadAlphas[i] = &network.AlphaNode{}
	}
	img.LoadJoins = make([]*network.JoinNode, nJoins)
	for i := range img.LoadJoins {
		img.LoadJoins[i] = &network.JoinNode{}
	}
	img.LoadRules = make([]*network.Rule, nRules)
	for i := range img.LoadRules {
		img.LoadRules[i] = &network.Rule{}
	}

	nParsers, err := r.U64()
	if err != nil {
		return err
	}
	img.loadHeads = img.loadHeads[:0]
	for i := uint64(0); i < nParsers; i++ {
		name, err := r.Str()
		if err != nil {
			return err
		}
		rootChild, err := r.U64()
		if err != nil {
			return err
		}
		terminals, err := r.U64()
		if err != nil {
			return err
		}
		parser := img.parserByName(name)
		if parser == nil {
			return utils.WrapError(utils.ErrBinaryFormat, "unknown pattern flavour "+name)
		}
		img.loadHeads = append(img.loadHeads, loadedParserHeads{
			parser:    parser,
			rootChild: rootChild,
			terminals: terminals,
		})
	}
	return nil
}

func (img *Image) parserByName(name string) *network.PatternParser {
	for _, p := range img.Net.Parsers {
		if p.Name.Lexeme() == name {
			return p
		}
	}
	return nil
}

func (img *Image) pnodeRef(id uint64) (*network.PatternNode, error) {
	if id == IDNone {
		return nil, nil
	}
	if id >= uint64(len(img.LoadPNodes)) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "pattern node id out of range")
	}
	return img.LoadPNodes[id], nil
}

func (img *Image) alphaRef(id uint64) (*network.AlphaNode, error) {
	if id == IDNone {
		return nil, nil
	}
	if id >= uint64(len(img.LoadAlphas)) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "alpha node id out of range")
	}
	return img.LoadAlphas[id], nil
}

func (img *Image) joinRef(id uint64) (*network.JoinNode, error) {
	if id == IDNone {
		return nil, nil
	}
	if id >= uint64(len(img.LoadJoins)) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "join id out of range")
	}
	return img.LoadJoins[id], nil
}

func networkLoad(img *Image, r *Reader) error {
	// Pattern nodes
	for _, node := range img.LoadPNodes {
		flags, err := r.U8()
		if err != nil {
			return err
		}
		node.MultifieldNode = flags&pnMultifield != 0
		node.EndSlot = flags&pnEndSlot != 0
		node.Selector = flags&pnSelector != 0
		node.FromEnd = flags&pnFromEnd != 0
		node.Blocked = flags&pnBlocked != 0

		if node.WhichSlot, err = r.U16(); err != nil {
			return err
		}
		if node.WhichField, err = r.U16(); err != nil {
			return err
		}
		if node.LeaveFields, err = r.U16(); err != nil {
			return err
		}
		useCount, err := r.U64()
		if err != nil {
			return err
		}
		node.UseCount = int(useCount)

		if node.ConstantSel, err = img.GetAtom(r); err != nil {
			return err
		}
		if node.ConstantSel != nil {
			atoms.Retain(node.ConstantSel)
		}
		if node.NetworkTest, err = img.GetExpr(r); err != nil {
			return err
		}

		ids := make([]uint64, 5)
		for i := range ids {
			if ids[i], err = r.U64(); err != nil {
				return err
			}
		}
		if node.NextLevel, err = img.pnodeRef(ids[0]); err != nil {
			return err
		}
		if node.LastLevel, err = img.pnodeRef(ids[1]); err != nil {
			return err
		}
		if node.LeftNode, err = img.pnodeRef(ids[2]); err != nil {
			return err
		}
		if node.RightNode, err = img.pnodeRef(ids[3]); err != nil {
			return err
		}
		if node.Alpha, err = img.alphaRef(ids[4]); err != nil {
			return err
		}
	}

	// Alpha terminals
	for _, a := range img.LoadAlphas {
		var err error
		if a.ClassBitmap, err = img.GetAtom(r); err != nil {
			return err
		}
		atoms.Retain(a.ClassBitmap)
		if a.SlotBitmap, err = img.GetAtom(r); err != nil {
			return err
		}
		if a.SlotBitmap != nil {
			atoms.Retain(a.SlotBitmap)
		}
		if a.RightHash, err = img.GetExpr(r); err != nil {
			return err
		}

		ids := make([]uint64, 3)
		for i := range ids {
			if ids[i], err = r.U64(); err != nil {
				return err
			}
		}
		if a.PatternNode, err = img.pnodeRef(ids[0]); err != nil {
			return err
		}
		if a.NextInGroup, err = img.alphaRef(ids[1]); err != nil {
			return err
		}
		if a.NextTerminal, err = img.alphaRef(ids[2]); err != nil {
			return err
		}

		useCount, err := r.U64()
		if err != nil {
			return err
		}
		a.UseCount = int(useCount)
		a.Memory = network.NewBetaMemory(a.RightHash != nil)

		nJoins, err := r.U64()
		if err != nil {
			return err
		}
		for i := uint64(0); i < nJoins; i++ {
			id, err := r.U64()
			if err != nil {
				return err
			}
			j, err := img.joinRef(id)
			if err != nil {
				return err
			}
			a.Joins = append(a.Joins, j)
		}
	}

	// Joins
	for _, j := range img.LoadJoins {
		flags, err := r.U8()
		if err != nil {
			return err
		}
		j.FirstJoin = flags&jnFirst != 0
		j.PatternIsNegated = flags&jnNegated != 0
		j.PatternIsExists = flags&jnExists != 0
		j.JoinFromTheRight = flags&jnFromRt != 0
		j.LogicalJoin = flags&jnLogical != 0

		if j.Depth, err = r.U16(); err != nil {
			return err
		}
		useCount, err := r.U64()
		if err != nil {
			return err
		}
		j.UseCount = int(useCount)

		if j.NetworkTest, err = img.GetExpr(r); err != nil {
			return err
		}
		if j.SecondaryNetworkTest, err = img.GetExpr(r); err != nil {
			return err
		}
		if j.LeftHash, err = img.GetExpr(r); err != nil {
			return err
		}
		if j.RightHash, err = img.GetExpr(r); err != nil {
			return err
		}
		j.LeftMemory = network.NewBetaMemory(j.LeftHash != nil)
		j.RightMemory = network.NewBetaMemory(j.RightHash != nil)

		entryType, err := r.U8()
		if err != nil {
			return err
		}
		entryID, err := r.U64()
		if err != nil {
			return err
		}
		switch entryType {
		case rightEntryAlpha:
			entry, err := img.alphaRef(entryID)
			if err != nil {
				return err
			}
			j.RightSideEntry = entry
		case rightEntryJoin:
			entry, err := img.joinRef(entryID)
			if err != nil {
				return err
			}
			j.RightSideEntry = entry
		}

		lastID, err := r.U64()
		if err != nil {
			return err
		}
		if j.LastLevel, err = img.joinRef(lastID); err != nil {
			return err
		}

		ruleID, err := r.U64()
		if err != nil {
			return err
		}
		if ruleID != IDNone {
			if ruleID >= uint64(len(img.LoadRules)) {
				return utils.WrapError(utils.ErrBinaryFormat, "rule id out of range")
			}
			j.RuleToActivate = img.LoadRules[ruleID]
		}

		nLinks, err := r.U64()
		if err != nil {
			return err
		}
		for i := uint64(0); i < nLinks; i++ {
			dir, err := r.U8()
			if err != nil {
				return err
			}
			id, err := r.U64()
			if err != nil {
				return err
			}
			child, err := img.joinRef(id)
			if err != nil {
				return err
			}
			j.AppendLoadedLink(network.Direction(dir), child)
		}
	}

	// Rules
	targeted := make(map[uint64]bool)
	disjunctIDs := make([]uint64, len(img.LoadRules))
	moduleIDs := make([]uint64, len(img.LoadRules))
	for i, d := range img.LoadRules {
		name, err := img.GetAtom(r)
		if err != nil {
			return err
		}
		d.Name = name

		if moduleIDs[i], err = r.U64(); err != nil {
			return err
		}
		sal, err := r.I64()
		if err != nil {
			return err
		}
		d.Salience = int(sal)
		if d.Complexity, err = r.U16(); err != nil {
			return err
		}
		if d.DynamicSalience, err = img.GetExpr(r); err != nil {
			return err
		}
		if d.Actions, err = img.GetExpr(r); err != nil {
			return err
		}

		lastID, err := r.U64()
		if err != nil {
			return err
		}
		if d.LastJoin, err = img.joinRef(lastID); err != nil {
			return err
		}
		logicalID, err := r.U64()
		if err != nil {
			return err
		}
		if d.LogicalJoin, err = img.joinRef(logicalID); err != nil {
			return err
		}

		if disjunctIDs[i], err = r.U64(); err != nil {
			return err
		}
		if disjunctIDs[i] != IDNone {
			targeted[disjunctIDs[i]] = true
		}
	}
	for i, d := range img.LoadRules {
		if disjunctIDs[i] != IDNone {
			if disjunctIDs[i] >= uint64(len(img.LoadRules)) {
				return utils.WrapError(utils.ErrBinaryFormat, "disjunct id out of range")
			}
			d.Disjunct = img.LoadRules[disjunctIDs[i]]
		}
	}

	// Register head disjuncts into their modules
	for i, d := range img.LoadRules {
		if targeted[uint64(i)] {
			continue
		}
		if moduleIDs[i] >= uint64(len(img.LoadModules)) {
			return utils.WrapError(utils.ErrBinaryFormat, "rule module id out of range")
		}
		img.Cons.AddConstruct(img.LoadModules[moduleIDs[i]], img.Net.RuleType, d)
		head := d
		head.EachDisjunct(func(dd *network.Rule) {
			dd.WhichModule = head.WhichModule
		})
	}

	// Attach per-parser heads
	for _, h := range img.loadHeads {
		rootChild, err := img.pnodeRef(h.rootChild)
		if err != nil {
			return err
		}
		h.parser.Root.NextLevel = rootChild
		if rootChild != nil {
			relinkParents(rootChild, h.parser.Root)
		}
		terminals, err := img.alphaRef(h.terminals)
		if err != nil {
			return err
		}
		h.parser.Terminals = terminals
		for a := terminals; a != nil; a = a.NextTerminal {
			a.Parser = h.parser
		}
	}
	return nil
}

// relinkParents points top-level siblings back at the flavour root,
// whose identity is not part of the image.
func relinkParents(first *network.PatternNode, root *network.PatternNode) {
	for sib := first; sib != nil; sib = sib.RightNode {
		sib.LastLevel = root
	}
}

func networkAfterLoad(img *Image) error {
	for _, j := range img.LoadJoins {
		img.Net.SeedEmptyMatch(j)
	}
	img.Net.ReindexLoaded()
	return nil
}

func networkClear(img *Image) {
	var rules []*network.Rule
	img.Net.Constructs.WalkConstructs(img.Net.RuleType, func(c constructs.Construct) {
		if rule, ok := c.(*network.Rule); ok {
			rules = append(rules, rule)
		}
	})
	for _, rule := range rules {
		_ = img.Net.RemoveRule(rule)
	}
}
