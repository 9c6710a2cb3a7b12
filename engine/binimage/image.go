package binimage

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/facts"
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

// Item is one registered contributor to the binary image. Find
// assigns dense ids and marks referenced atoms; SaveStorage writes
// counts, Save writes records; the load-side trio mirrors them.
// Priority establishes the stable save/load order.
type Item struct {
	Name     string
	Priority int

	Find        func(*Image)
	SaveStorage func(*Image, *Writer)
	Save        func(*Image, *Writer)

	LoadStorage func(*Image, *Reader) error
	Load        func(*Image, *Reader) error
	AfterLoad   func(*Image) error

	Clear func(*Image)
}

// Registry holds the binary items in priority order
type Registry struct {
	items []*Item
}

// Add registers a binary item. Registration normally happens once at
// environment startup.
func (r *Registry) Add(item *Item) {
	r.items = append(r.items, item)
	sort.SliceStable(r.items, func(i, j int) bool {
		return r.items[i].Priority > r.items[j].Priority
	})
}

// Items returns the registered items in save order
func (r *Registry) Items() []*Item {
	return r.items
}

// Image carries the id maps of one save or load pass
type Image struct {
	Reg    *atoms.Registry
	Cons   *constructs.Registry
	Net    *network.Network
	Facts  *facts.Store
	Logger *utils.Logger

	// Save-phase dense orders
	exprNodes []*atoms.Expr

	Rules  []*network.Rule
	Joins  []*network.JoinNode
	Alphas []*network.AlphaNode
	PNodes []*network.PatternNode

	RuleID  map[*network.Rule]uint64
	JoinID  map[*network.JoinNode]uint64
	AlphaID map[*network.AlphaNode]uint64
	PNodeID map[*network.PatternNode]uint64

	// Load-phase arrays indexed by dense id
	LoadSymbols  []*atoms.Atom
	LoadIntegers []*atoms.Atom
	LoadFloats   []*atoms.Atom
	LoadBitmaps  []*atoms.Atom
	LoadExprs    []*atoms.Expr
	LoadModules  []*constructs.Module
	LoadRules    []*network.Rule
	LoadJoins    []*network.JoinNode
	LoadAlphas   []*network.AlphaNode
	LoadPNodes   []*network.PatternNode

	// Facts awaiting replay once the network is wired
	PendingFacts []pendingFact

	loadHeads []loadedParserHeads
}

type pendingFact struct {
	template uint32
	slots    [][]*atoms.Atom
}

// NewImage binds an image pass to the engine state
func NewImage(reg *atoms.Registry, cons *constructs.Registry, net *network.Network, fs *facts.Store, logger *utils.Logger) *Image {
	return &Image{
		Reg:     reg,
		Cons:    cons,
		Net:     net,
		Facts:   fs,
		Logger:  logger,
		RuleID:  make(map[*network.Rule]uint64),
		JoinID:  make(map[*network.JoinNode]uint64),
		AlphaID: make(map[*network.AlphaNode]uint64),
		PNodeID: make(map[*network.PatternNode]uint64),
	}
}

// Save writes the full image: header, atom tables, expression pool,
// then every registered item's chunk, then the footer sentinel.
// Serialization is stop-the-world: no propagation may be in progress.
func (r *Registry) Save(img *Image, out io.Writer) error {
	if img.Net.JoinOperationInProgress {
		return utils.WrapError(utils.ErrNotDeletable, "cannot save during propagation")
	}

	// Find phase: dense construct ids, needed marks on atoms
	for _, item := range r.items {
		if item.Find != nil {
			item.Find(img)
		}
	}

	// Expression pool: every interned tree, flattened; referenced
	// atoms join the needed set
	img.flattenExpressions()

	if err := writeHeader(out); err != nil {
		return err
	}

	// Atom tables, assigning dense ids in write order
	if err := img.writeAtomChunks(out); err != nil {
		return err
	}
	if err := img.writeExprChunk(out); err != nil {
		return err
	}

	for _, item := range r.items {
		storage := NewWriter()
		if item.SaveStorage != nil {
			item.SaveStorage(img, storage)
		}
		data := NewWriter()
		if item.Save != nil {
			item.Save(img, data)
		}
		if err := writeChunk(out, item.Name, storage.Bytes(), data.Bytes()); err != nil {
			return err
		}
	}
	if err := writeFooter(out); err != nil {
		return err
	}

	// Restore in-memory state the find phase disturbed
	img.Reg.ClearNeeded()
	return nil
}

// Load reads an image produced by Save into a cleared engine. A
// format mismatch fails before any state is touched.
func (r *Registry) Load(img *Image, in io.Reader) error {
	if err := readHeader(in); err != nil {
		return err
	}
	if err := img.readAtomChunks(in); err != nil {
		return err
	}
	if err := img.readExprChunk(in); err != nil {
		return err
	}

	byName := make(map[string]*Item, len(r.items))
	for _, item := range r.items {
		byName[item.Name] = item
	}

	for {
		nameBytes, err := readLenPrefixed(in)
		if err != nil {
			return err
		}
		if len(nameBytes) == 0 {
			break // footer
		}
		storage, err := readLenPrefixed(in)
		if err != nil {
			return err
		}
		data, err := readLenPrefixed(in)
		if err != nil {
			return err
		}
		item, ok := byName[string(nameBytes)]
		if !ok {
			return utils.WrapError(utils.ErrBinaryFormat, "unknown chunk "+string(nameBytes))
		}
		if item.LoadStorage != nil {
			if err := item.LoadStorage(img, NewReader(storage)); err != nil {
				return err
			}
		}
		if item.Load != nil {
			if err := item.Load(img, NewReader(data)); err != nil {
				return err
			}
		}
	}

	for _, item := range r.items {
		if item.AfterLoad != nil {
			if err := item.AfterLoad(img); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear invokes every item's clear callback in reverse dependency
// order.
func (r *Registry) Clear(img *Image) {
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Clear != nil {
			r.items[i].Clear(img)
		}
	}
}

// SaveCompressed wraps the image stream in brotli
func (r *Registry) SaveCompressed(img *Image, out io.Writer) error {
	bw := brotli.NewWriter(out)
	if err := r.Save(img, bw); err != nil {
		return err
	}
	return bw.Close()
}

// LoadAuto sniffs the stream and reads either a raw or a compressed
// image.
func (r *Registry) LoadAuto(img *Image, in io.Reader) error {
	br := bufio.NewReader(in)
	peek, err := br.Peek(len(ImagePrefix))
	if err == nil && bytes.Equal(peek, []byte(ImagePrefix)) {
		return r.Load(img, br)
	}
	return r.Load(img, brotli.NewReader(br))
}
