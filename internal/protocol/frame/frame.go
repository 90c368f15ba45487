package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/simlink/internal/protocol/wire"
)

const (
	HeaderLen        = wire.HeaderLen
	InboundHeaderLen = 8
	// RequestTag marks an outbound type field as client-originated.
	RequestTag   uint32 = 0xF0000000
	MaxFrameSize        = wire.DefaultCapacity
	sizeFieldLen        = 4
)

var (
	ErrShortHeader   = errors.New("frame: short header")
	ErrSizeMismatch  = errors.New("frame: size field does not match frame length")
	ErrFrameTooLarge = errors.New("frame: frame too large")
)

// Opcode is a client request type carried in the outbound header.
type Opcode uint32

const (
	OpOpen                       Opcode = 0x01
	OpAddToDataDefinition        Opcode = 0x0C
	OpRequestDataOnSimObject     Opcode = 0x0E
	OpRequestDataOnSimObjectType Opcode = 0x0F
	OpSubscribeToSystemEvent     Opcode = 0x17
)

func (o Opcode) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpAddToDataDefinition:
		return "add_to_data_definition"
	case OpRequestDataOnSimObject:
		return "request_data_on_sim_object"
	case OpRequestDataOnSimObjectType:
		return "request_data_on_sim_object_type"
	case OpSubscribeToSystemEvent:
		return "subscribe_to_system_event"
	default:
		return fmt.Sprintf("opcode(0x%02X)", uint32(o))
	}
}

// Header is the fixed outbound header.
type Header struct {
	Size            uint32
	ProtocolVersion uint32
	Type            uint32
	SequenceIndex   uint32
}

// Opcode strips the request tag from Type.
func (h Header) Opcode() Opcode {
	return Opcode(h.Type &^ RequestTag)
}

// Finalize backfills the header of a payload already written past the
// reserved region. Size always equals b.Len() at call time.
func Finalize(b *wire.Buffer, protocolVersion uint32, op Opcode, seq uint32) (Header, error) {
	if err := b.Err(); err != nil {
		return Header{}, err
	}
	h := Header{
		Size:            uint32(b.Len()),
		ProtocolVersion: protocolVersion,
		Type:            RequestTag | uint32(op),
		SequenceIndex:   seq,
	}
	b.PutUint32At(0, h.Size)
	b.PutUint32At(4, h.ProtocolVersion)
	b.PutUint32At(8, h.Type)
	b.PutUint32At(12, h.SequenceIndex)
	return h, nil
}

// DecodeHeader reads an outbound header and checks its size field against the
// frame length.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	h := Header{
		Size:            binary.LittleEndian.Uint32(b[0:4]),
		ProtocolVersion: binary.LittleEndian.Uint32(b[4:8]),
		Type:            binary.LittleEndian.Uint32(b[8:12]),
		SequenceIndex:   binary.LittleEndian.Uint32(b[12:16]),
	}
	if int(h.Size) != len(b) {
		return Header{}, fmt.Errorf("%w: size=%d len=%d", ErrSizeMismatch, h.Size, len(b))
	}
	return h, nil
}

// Inbound is one host message after the transport stripped its size prefix.
type Inbound struct {
	Version uint32
	Kind    uint32
	Payload []byte
}

// ParseInbound splits the common header off a delivered chunk. Payload
// aliases chunk.
func ParseInbound(chunk []byte) (Inbound, error) {
	if len(chunk) < InboundHeaderLen {
		return Inbound{}, fmt.Errorf("%w: len=%d", ErrShortHeader, len(chunk))
	}
	return Inbound{
		Version: binary.LittleEndian.Uint32(chunk[0:4]),
		Kind:    binary.LittleEndian.Uint32(chunk[4:8]),
		Payload: chunk[InboundHeaderLen:],
	}, nil
}

// ReadFrame reads one size-prefixed host message from a stream and returns
// the bytes following the size field.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var sizeBuf [sizeFieldLen]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}
	size := int(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < sizeFieldLen+InboundHeaderLen {
		return nil, fmt.Errorf("%w: size=%d", ErrShortHeader, size)
	}
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: size=%d max=%d", ErrFrameTooLarge, size, maxSize)
	}
	chunk := make([]byte, size-sizeFieldLen)
	if _, err := io.ReadFull(r, chunk); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return chunk, nil
}

// EncodeInbound renders a host message with its size prefix. The client never
// sends these; the transport tests and local host stand-ins do.
func EncodeInbound(version, kind uint32, payload []byte) []byte {
	size := sizeFieldLen + InboundHeaderLen + len(payload)
	out := make([]byte, size)
	binary.LittleEndian.PutUint32(out[0:4], uint32(size))
	binary.LittleEndian.PutUint32(out[4:8], version)
	binary.LittleEndian.PutUint32(out[8:12], kind)
	copy(out[12:], payload)
	return out
}

// WriteFrame writes one host message to w.
func WriteFrame(w io.Writer, version, kind uint32, payload []byte) error {
	_, err := w.Write(EncodeInbound(version, kind, payload))
	return err
}
