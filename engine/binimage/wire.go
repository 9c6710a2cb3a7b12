package binimage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/nmxmxh/rete_v1/utils"
)

// Image framing constants. The prefix and version are checked on
// load; the sizes vector pins the primitive widths so an image is
// only read by an equivalent build.
const (
	ImagePrefix  = "RETEIMG1"
	ImageVersion = "rete-1.0-go     " // 16 bytes
)

var sizesVector = []byte{2, 4, 8, 8, 8} // short, int, long, size_t, pointer-id

// IDNone denotes a null pointer in every id-encoded field
const IDNone = ^uint64(0)

// Writer serializes little-endian primitives into a block buffer
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) U8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) I64(v int64) {
	w.U64(uint64(v))
}

func (w *Writer) F64(v float64) {
	w.U64(math.Float64bits(v))
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) Blob(b []byte) {
	w.U64(uint64(len(b)))
	w.buf.Write(b)
}

func (w *Writer) Str(s string) {
	w.Blob([]byte(s))
}

// Reader deserializes a block buffer written by Writer
type Reader struct {
	b   []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) need(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "truncated block")
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.need(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

func (r *Reader) Blob() ([]byte, error) {
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	b, err := r.need(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) Str() (string, error) {
	b, err := r.Blob()
	return string(b), err
}

// Remaining reports unread bytes, for end-of-block checks
func (r *Reader) Remaining() int {
	return len(r.b) - r.off
}

// writeHeader emits the image prefix, version, and sizes vector
func writeHeader(out io.Writer) error {
	if _, err := out.Write([]byte(ImagePrefix)); err != nil {
		return err
	}
	if _, err := out.Write([]byte(ImageVersion)); err != nil {
		return err
	}
	if _, err := out.Write([]byte{byte(len(sizesVector))}); err != nil {
		return err
	}
	_, err := out.Write(sizesVector)
	return err
}

// readHeader verifies the prefix, version, and sizes vector
func readHeader(in io.Reader) error {
	buf := make([]byte, len(ImagePrefix)+len(ImageVersion)+1)
	if _, err := io.ReadFull(in, buf); err != nil {
		return utils.WrapError(utils.ErrBinaryFormat, "short image header")
	}
	if string(buf[:len(ImagePrefix)]) != ImagePrefix {
		return utils.WrapError(utils.ErrBinaryFormat, "bad image prefix")
	}
	if string(buf[len(ImagePrefix):len(ImagePrefix)+len(ImageVersion)]) != ImageVersion {
		return utils.WrapError(utils.ErrBinaryFormat, "image version mismatch")
	}
	n := int(buf[len(buf)-1])
	sizes := make([]byte, n)
	if _, err := io.ReadFull(in, sizes); err != nil {
		return utils.WrapError(utils.ErrBinaryFormat, "short sizes vector")
	}
	if !bytes.Equal(sizes, sizesVector) {
		return utils.WrapError(utils.ErrBinaryFormat, "primitive sizes mismatch")
	}
	return nil
}

// writeChunk frames one binary item's storage and data blocks
func writeChunk(out io.Writer, name string, storage, data []byte) error {
	if err := writeLenPrefixed(out, []byte(name)); err != nil {
		return err
	}
	if err := writeLenPrefixed(out, storage); err != nil {
		return err
	}
	return writeLenPrefixed(out, data)
}

// writeFooter emits the zero-length sentinel name
func writeFooter(out io.Writer) error {
	return writeLenPrefixed(out, nil)
}

func writeLenPrefixed(out io.Writer, b []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	if _, err := out.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(b) > 0 {
		if _, err := out.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func readLenPrefixed(in io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(in, lenBuf[:]); err != nil {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "truncated chunk")
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(in, b); err != nil {
		return nil, utils.WrapError(utils.ErrBinaryFormat, "truncated chunk body")
	}
	return b, nil
}

