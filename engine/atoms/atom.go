package atoms

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the primitive type of an interned atom
type Kind uint8

const (
	KindSymbol Kind = iota
	KindString
	KindInstanceName
	KindInteger
	KindFloat
	KindBitmap
	KindExternal
)

var kindNames = map[Kind]string{
	KindSymbol:       "SYMBOL",
	KindString:       "STRING",
	KindInstanceName: "INSTANCE-NAME",
	KindInteger:      "INTEGER",
	KindFloat:        "FLOAT",
	KindBitmap:       "BITMAP",
	KindExternal:     "EXTERNAL-ADDRESS",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Atom is an interned value. Atoms are immutable once interned; equality
// is pointer equality. Each atom carries a reference count and an
// ephemeral flag marking it eligible for collection when the count
// drops to zero.
type Atom struct {
	kind      Kind
	bucket    uint64
	count     int
	permanent bool
	ephemeral bool
	needed    bool

	lexeme  string
	integer int64
	float   float64
	bits    []byte

	external     interface{}
	externalType uint16

	// Transient dense id assigned during binary save
	SaveID uint64

	owner  *Table
	listed bool // on the owner's ephemeral list
	next   *Atom
}

// Kind returns the primitive type of the atom
func (a *Atom) Kind() Kind {
	return a.kind
}

// Bucket returns the hash bucket index the atom lives in
func (a *Atom) Bucket() uint64 {
	return a.bucket
}

// Count returns the current reference count
func (a *Atom) Count() int {
	return a.count
}

// Needed reports whether the atom is marked for inclusion in a binary save
func (a *Atom) Needed() bool {
	return a.needed
}

// Lexeme returns the text of a symbol, string, or instance-name atom
func (a *Atom) Lexeme() string {
	return a.lexeme
}

// Integer returns the value of an integer atom
func (a *Atom) Integer() int64 {
	return a.integer
}

// Float returns the value of a float atom
func (a *Atom) Float() float64 {
	return a.float
}

// Bytes returns the payload of a bitmap atom
func (a *Atom) Bytes() []byte {
	return a.bits
}

// External returns the handle and subtype of an external-address atom
func (a *Atom) External() (interface{}, uint16) {
	return a.external, a.externalType
}

// Numeric returns the atom's value as a float for mixed comparisons
func (a *Atom) Numeric() (float64, bool) {
	switch a.kind {
	case KindInteger:
		return float64(a.integer), true
	case KindFloat:
		return a.float, true
	}
	return 0, false
}

func (a *Atom) String() string {
	switch a.kind {
	case KindSymbol, KindInstanceName:
		return a.lexeme
	case KindString:
		return strconv.Quote(a.lexeme)
	case KindInteger:
		return strconv.FormatInt(a.integer, 10)
	case KindFloat:
		return strconv.FormatFloat(a.float, 'g', -1, 64)
	case KindBitmap:
		return fmt.Sprintf("<bitmap:%d>", len(a.bits))
	case KindExternal:
		return fmt.Sprintf("<external:%d>", a.externalType)
	}
	return "<unknown>"
}

// hashPayload produces the fixed hash of the atom's payload. The hash
// functions must not change between a save and the load that reads it:
// the load path re-derives bucket indexes from these values.
func hashPayload(kind Kind, lexeme string, integer int64, float float64, bits []byte) uint64 {
	switch kind {
	case KindSymbol, KindString, KindInstanceName:
		return hashString(lexeme)
	case KindInteger:
		return mix64(uint64(integer))
	case KindFloat:
		// Canonical double bits so 0.0 and -0.0 share a bucket
		b := math.Float64bits(float)
		if float == 0 {
			b = 0
		}
		return mix64(b)
	case KindBitmap:
		return hashBytes(bits)
	}
	return 0
}

// mix64 is the integer bit-mix used for integer and float buckets
func mix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// VarRef identifies a variable occurrence inside the match network: a
// pattern index within a partial match, a slot, and a field within the
// slot. Refs are interned as bitmap atoms so that network tests ride
// the bitmap table through a binary save.
type VarRef struct {
	Pattern   uint16
	Slot      uint16
	Field     uint16
	FromRight bool
	FromEnd   bool // Field counts back from the slot's last field
	Multi     bool
}

const varRefSize = 8

// Encode packs the ref into a bitmap payload
func (v VarRef) Encode() []byte {
	b := make([]byte, varRefSize)
	binary.LittleEndian.PutUint16(b[0:2], v.Pattern)
	binary.LittleEndian.PutUint16(b[2:4], v.Slot)
	binary.LittleEndian.PutUint16(b[4:6], v.Field)
	if v.FromRight {
		b[6] |= 1
	}
	if v.FromEnd {
		b[6] |= 2
	}
	if v.Multi {
		b[7] = 1
	}
	return b
}

// DecodeVarRef unpacks a ref from a bitmap payload
func DecodeVarRef(b []byte) VarRef {
	if len(b) < varRefSize {
		return VarRef{}
	}
	return VarRef{
		Pattern:   binary.LittleEndian.Uint16(b[0:2]),
		Slot:      binary.LittleEndian.Uint16(b[2:4]),
		Field:     binary.LittleEndian.Uint16(b[4:6]),
		FromRight: b[6]&1 != 0,
		FromEnd:   b[6]&2 != 0,
		Multi:     b[7] != 0,
	}
}
