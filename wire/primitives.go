// Package wire implements the framed byte-stream codec of the remoting
// protocol (spec.md C1): little-endian primitives, length-prefixed
// strings and byte blobs, and the RemotingReferenceType tag set that
// begins every argument on the wire. It owns no knowledge of objects,
// proxies or user types — that classification lives in package marshal.
package wire

import (
	"encoding/binary"
	"io"
	"sync"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Writer serializes primitives onto an underlying stream. All wire writes
// for a single frame (header plus every tagged argument) must go through
// the same Writer while holding Lock, so frames are never interleaved on
// the wire (spec.md §5).
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	buf [8]byte
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Lock/Unlock expose the per-stream writer mutex so callers (the client
// interceptor, the server dispatcher) can hold it across an entire frame.
func (w *Writer) Lock()   { w.mu.Lock() }
func (w *Writer) Unlock() { w.mu.Unlock() }

func (w *Writer) WriteInt32(v int32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	_, err := w.w.Write(w.buf[:4])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	_, err := w.w.Write(w.buf[:4])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	_, err := w.w.Write(w.buf[:8])
	return err
}

func (w *Writer) WriteByte(b byte) error {
	w.buf[0] = b
	_, err := w.w.Write(w.buf[:1])
	return err
}

func (w *Writer) WriteBool(b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func (w *Writer) WriteBytes(p []byte) error {
	if err := w.WriteInt32(int32(len(p))); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.w.Write(p)
	return err
}

// WriteString writes {length:int32, UTF-16 bytes}, matching the wire
// alphabet's "strings as UTF-16" rule (§4.1).
func (w *Writer) WriteString(s string) error {
	u16 := utf16.Encode([]rune(s))
	if err := w.WriteInt32(int32(len(u16))); err != nil {
		return err
	}
	raw := make([]byte, len(u16)*2)
	for i, v := range u16 {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	_, err := w.w.Write(raw)
	return err
}

// Reader deserializes primitives from an underlying stream.
type Reader struct {
	r   io.Reader
	buf [8]byte
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) fill(n int) ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		return nil, err
	}
	return r.buf[:n], nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("wire: negative byte blob length %d", n)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadString is the dual of WriteString.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errors.Errorf("wire: negative string length %d", n)
	}
	if n == 0 {
		return "", nil
	}
	raw := make([]byte, int(n)*2)
	if _, err := io.ReadFull(r.r, raw); err != nil {
		return "", err
	}
	u16 := make([]uint16, n)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(u16)), nil
}
