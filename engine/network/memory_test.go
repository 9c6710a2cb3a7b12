package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rete_v1/engine/atoms"
)

func TestBetaMemoryInsertOrder(t *testing.T) {
	m := NewBetaMemory(false)
	require.Equal(t, uint64(1), m.Size)

	a := &PartialMatch{Hash: 0}
	b := &PartialMatch{Hash: 17}
	c := &PartialMatch{Hash: 34}
	m.Insert(a)
	m.Insert(b)
	m.Insert(c)

	// All hashes collide in the single bucket; insertion order holds
	assert.Equal(t, []*PartialMatch{a, b, c}, m.Contents())
	assert.Equal(t, uint64(3), m.Count)

	m.Remove(b)
	assert.Equal(t, []*PartialMatch{a, c}, m.Contents())

	m.Remove(a)
	m.Remove(c)
	assert.Empty(t, m.Contents())
	assert.Equal(t, uint64(0), m.Count)
}

func TestBetaMemoryBuckets(t *testing.T) {
	m := NewBetaMemory(true)
	require.Equal(t, uint64(initialBetaSize), m.Size)

	a := &PartialMatch{Hash: 3}
	b := &PartialMatch{Hash: 3 + initialBetaSize}
	c := &PartialMatch{Hash: 4}
	m.Insert(a)
	m.Insert(b)
	m.Insert(c)

	// Colliding hashes share a chain in insertion order
	assert.Same(t, a, m.Bucket(3))
	assert.Same(t, b, m.Bucket(3).NextInMemory)
	assert.Same(t, c, m.Bucket(4))
}

func TestBetaMemoryResize(t *testing.T) {
	m := NewBetaMemory(true)

	var matches []*PartialMatch
	for i := 0; i < int(initialBetaSize*resizeLoad)+1; i++ {
		pm := &PartialMatch{Hash: uint64(i)}
		matches = append(matches, pm)
		m.Insert(pm)
	}

	// Resize disabled: size stays
	m.MaybeResize(false)
	assert.Equal(t, uint64(initialBetaSize), m.Size)

	m.MaybeResize(true)
	assert.Greater(t, m.Size, uint64(initialBetaSize))
	assert.Equal(t, uint64(len(matches)), m.Count)

	// Every match is still reachable through its new bucket
	for _, pm := range matches {
		found := false
		for cur := m.Bucket(pm.Hash); cur != nil; cur = cur.NextInMemory {
			if cur == pm {
				found = true
				break
			}
		}
		assert.True(t, found)
	}

	// A degenerate memory never resizes
	d := NewBetaMemory(false)
	for i := 0; i < 100; i++ {
		d.Insert(&PartialMatch{})
	}
	d.MaybeResize(true)
	assert.Equal(t, uint64(1), d.Size)
}

func TestBlockLinks(t *testing.T) {
	left1 := &PartialMatch{}
	left2 := &PartialMatch{}
	right := &PartialMatch{}

	block(left1, right)
	block(left2, right)
	assert.Same(t, right, left1.Blocker)
	assert.Same(t, left2, right.BlockList)
	assert.Same(t, left1, right.BlockList.NextBlocked)

	unblock(left2)
	assert.Same(t, left1, right.BlockList)
	assert.Nil(t, left2.Blocker)

	unblock(left1)
	assert.Nil(t, right.BlockList)
}

func TestLineageLinks(t *testing.T) {
	parent := &PartialMatch{}
	c1 := &PartialMatch{}
	c2 := &PartialMatch{}

	linkLeftChild(c1, parent)
	linkLeftChild(c2, parent)
	assert.Same(t, c2, parent.LeftChildren)
	assert.Same(t, c1, parent.LeftChildren.NextLeftChild)

	unlinkLeftChild(c2)
	assert.Same(t, c1, parent.LeftChildren)
	unlinkLeftChild(c1)
	assert.Nil(t, parent.LeftChildren)
}

func TestSharesPrefix(t *testing.T) {
	e1 := &fakeEntity{}
	e2 := &fakeEntity{}

	left := &PartialMatch{Binds: []Bind{{Entity: e1}}}
	right := &PartialMatch{Binds: []Bind{{Entity: e1}, {Entity: e2}}}
	other := &PartialMatch{Binds: []Bind{{Entity: e2}, {Entity: e2}}}

	assert.True(t, sharesPrefix(left, right))
	assert.False(t, sharesPrefix(left, other))

	// The empty prefix matches everything
	empty := &PartialMatch{}
	assert.True(t, sharesPrefix(empty, right))
}

type fakeEntity struct {
	core EntityCore
}

func (f *fakeEntity) Core() *EntityCore      { return &f.core }
func (f *fakeEntity) ClassID() uint32        { return 0 }
func (f *fakeEntity) SlotCount() int         { return 0 }
func (f *fakeEntity) Slot(int) []*atoms.Atom { return nil }
