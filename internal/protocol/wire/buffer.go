package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderLen is the outbound header region reserved at the front of every Buffer.
	HeaderLen = 16
	// DefaultCapacity matches the host's receive window.
	DefaultCapacity = 65536
)

var (
	ErrTruncatedFrame = errors.New("wire: truncated frame")
	ErrStringTooLong  = errors.New("wire: string exceeds fixed width")
	ErrBufferFull     = errors.New("wire: buffer capacity exceeded")
)

// Buffer is a reusable little-endian write cursor. The first HeaderLen bytes
// are reserved for the framer; payload writes begin after them.
//
// Put methods record the first failure and turn into no-ops afterwards; check
// Err before handing the buffer to the framer. Buffer is not safe for
// concurrent use.
type Buffer struct {
	buf []byte
	off int
	err error
}

func NewBuffer(capacity int) *Buffer {
	if capacity < HeaderLen {
		capacity = DefaultCapacity
	}
	b := &Buffer{buf: make([]byte, capacity)}
	b.Clean()
	return b
}

// Clean resets the write cursor to just past the header region.
func (b *Buffer) Clean() {
	clear(b.buf[:HeaderLen])
	b.off = HeaderLen
	b.err = nil
}

func (b *Buffer) Err() error { return b.err }

// Len is the number of bytes in use, header included.
func (b *Buffer) Len() int { return b.off }

func (b *Buffer) Cap() int { return len(b.buf) }

// Bytes returns the used region. The slice aliases the buffer and is only
// valid until the next Clean.
func (b *Buffer) Bytes() []byte { return b.buf[:b.off] }

// PutUint32At writes v at an absolute offset without moving the cursor.
func (b *Buffer) PutUint32At(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[off:off+4], v)
}

func (b *Buffer) PutInt32(v int32) {
	b.PutUint32(uint32(v))
}

func (b *Buffer) PutUint32(v uint32) {
	if p := b.grow(4); p != nil {
		binary.LittleEndian.PutUint32(p, v)
	}
}

func (b *Buffer) PutInt64(v int64) {
	if p := b.grow(8); p != nil {
		binary.LittleEndian.PutUint64(p, uint64(v))
	}
}

func (b *Buffer) PutFloat32(v float32) {
	b.PutUint32(math.Float32bits(v))
}

func (b *Buffer) PutFloat64(v float64) {
	if p := b.grow(8); p != nil {
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	}
}

func (b *Buffer) PutByte(v byte) {
	if p := b.grow(1); p != nil {
		p[0] = v
	}
}

func (b *Buffer) PutBytes(v []byte) {
	if p := b.grow(len(v)); p != nil {
		copy(p, v)
	}
}

// PutString writes s into a zero-padded slot of exactly width bytes.
// The last byte of the slot is reserved for the terminator, so len(s) must be
// at most width-1; longer input records ErrStringTooLong and writes nothing.
func (b *Buffer) PutString(s string, width int) {
	if b.err != nil {
		return
	}
	if len(s) > width-1 {
		b.err = fmt.Errorf("%w: len=%d width=%d", ErrStringTooLong, len(s), width)
		return
	}
	p := b.grow(width)
	if p == nil {
		return
	}
	n := copy(p, s)
	clear(p[n:])
}

func (b *Buffer) grow(n int) []byte {
	if b.err != nil {
		return nil
	}
	if b.off+n > len(b.buf) {
		b.err = fmt.Errorf("%w: need=%d free=%d", ErrBufferFull, n, len(b.buf)-b.off)
		return nil
	}
	p := b.buf[b.off : b.off+n]
	b.off += n
	return p
}
