package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is a little-endian read cursor over one inbound payload.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len reports unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

func (r *Reader) Offset() int { return r.off }

// Remaining returns a copy of the unread bytes and moves the cursor to the end.
func (r *Reader) Remaining() []byte {
	out := make([]byte, r.Len())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *Reader) ReadUint32() (uint32, error) {
	p, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	p, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	p, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil
}

// ReadString consumes exactly maxLen bytes and returns the content up to the
// first NUL.
func (r *Reader) ReadString(maxLen int) (string, error) {
	p, err := r.take(maxLen)
	if err != nil {
		return "", err
	}
	return cstring(p), nil
}

// ReadBoundedString is ReadString for a trailing field the host may send
// short: it consumes min(maxLen, Len()) bytes.
func (r *Reader) ReadBoundedString(maxLen int) (string, error) {
	n := min(maxLen, r.Len())
	p, err := r.take(n)
	if err != nil {
		return "", err
	}
	return cstring(p), nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, fmt.Errorf("%w: need=%d have=%d at=%d", ErrTruncatedFrame, n, r.Len(), r.off)
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p, nil
}

func cstring(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}
