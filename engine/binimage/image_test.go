package binimage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/rete_v1/engine/atoms"
	"github.com/nmxmxh/rete_v1/engine/constructs"
	"github.com/nmxmxh/rete_v1/engine/facts"
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

type world struct {
	reg  *atoms.Registry
	cons *constructs.Registry
	net  *network.Network
	fs   *facts.Store
	bin  *Registry
}

func newWorld(t *testing.T) *world {
	t.Helper()
	reg := atoms.NewRegistry()
	cons := constructs.NewRegistry(reg, nil)
	net := network.New(reg, cons, nil)
	fs := facts.NewStore(reg, cons, net, nil)
	return &world{reg: reg, cons: cons, net: net, fs: fs, bin: StandardRegistry()}
}

func (w *world) image() *Image {
	return NewImage(w.reg, w.cons, w.net, w.fs, nil)
}

func buildSmallWorld(t *testing.T, w *world) {
	t.Helper()
	tpl, err := w.fs.DefTemplate("tag", facts.SlotSpec{Name: "v"})
	require.NoError(t, err)

	x := w.reg.Symbol("x")
	r, err := w.net.BuildRule(&network.RuleDef{
		Name: "r",
		LHS: []*network.ParsedCE{
			w.fs.Pattern(tpl).Slot("v", facts.Var(x)).CE(),
		},
	})
	require.NoError(t, err)
	w.net.IncrementalReset(r)

	_, err = w.fs.Assert(w.fs.NewFact(tpl).Set("v", w.reg.Symbol("hello")))
	require.NoError(t, err)
}

func TestWriterReaderPrimitives(t *testing.T) {
	w := NewWriter()
	w.U8(7)
	w.U16(300)
	w.U32(70000)
	w.U64(1 << 40)
	w.I64(-9)
	w.F64(2.5)
	w.Bool(true)
	w.Str("hi")
	w.Blob([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	u8, _ := r.U8()
	assert.Equal(t, uint8(7), u8)
	u16, _ := r.U16()
	assert.Equal(t, uint16(300), u16)
	u32, _ := r.U32()
	assert.Equal(t, uint32(70000), u32)
	u64, _ := r.U64()
	assert.Equal(t, uint64(1<<40), u64)
	i64, _ := r.I64()
	assert.Equal(t, int64(-9), i64)
	f64, _ := r.F64()
	assert.Equal(t, 2.5, f64)
	b, _ := r.Bool()
	assert.True(t, b)
	s, _ := r.Str()
	assert.Equal(t, "hi", s)
	blob, _ := r.Blob()
	assert.Equal(t, []byte{1, 2, 3}, blob)
	assert.Zero(t, r.Remaining())

	// Reading past the end reports a format error
	_, err := r.U64()
	assert.ErrorIs(t, err, utils.ErrBinaryFormat)
}

func TestSaveLoadSmallWorld(t *testing.T) {
	w := newWorld(t)
	buildSmallWorld(t, w)

	var buf bytes.Buffer
	require.NoError(t, w.bin.Save(w.image(), &buf))

	// A fresh world reads it back
	w2 := newWorld(t)
	require.NoError(t, w2.bin.Load(w2.image(), bytes.NewReader(buf.Bytes())))

	assert.Equal(t, 1, w2.fs.Count())
	assert.NotNil(t, w2.fs.FindTemplate(w2.reg.Symbol("tag")))
	assert.Equal(t, 1, w2.net.TerminalCount(w2.fs.Parser))

	rule := w2.cons.FindConstruct(w2.cons.Current, w2.net.RuleType, "r")
	require.NotNil(t, rule)

	// The replayed fact produced an activation
	ag, ok := w2.net.Agendas[w2.cons.Current]
	require.True(t, ok)
	assert.Equal(t, 1, ag.Count())
}

func TestInspect(t *testing.T) {
	w := newWorld(t)
	buildSmallWorld(t, w)

	var buf bytes.Buffer
	require.NoError(t, w.bin.Save(w.image(), &buf))

	info, err := Inspect(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.False(t, info.Compressed)

	var names []string
	for _, c := range info.Chunks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"symbols", "integers", "floats", "bitmaps", "expressions",
		"defmodule", "deftemplate", "defrule", "facts",
	}, names)
}

func TestInspectCompressed(t *testing.T) {
	w := newWorld(t)
	buildSmallWorld(t, w)

	var buf bytes.Buffer
	require.NoError(t, w.bin.SaveCompressed(w.image(), &buf))
	assert.NotEqual(t, []byte(ImagePrefix), buf.Bytes()[:len(ImagePrefix)])

	info, err := Inspect(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, info.Compressed)

	// LoadAuto unwraps it
	w2 := newWorld(t)
	require.NoError(t, w2.bin.LoadAuto(w2.image(), bytes.NewReader(buf.Bytes())))
	assert.Equal(t, 1, w2.fs.Count())
}

func TestLoadRejectsBadHeader(t *testing.T) {
	w := newWorld(t)
	err := w.bin.Load(w.image(), bytes.NewReader([]byte("XXXXXXXXbadversion......")))
	assert.ErrorIs(t, err, utils.ErrBinaryFormat)
}
