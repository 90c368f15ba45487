package recv

import (
	"errors"
	"fmt"

	"github.com/danmuck/simlink/internal/protocol/wire"
)

const (
	nameLen = 256
	// maxPath bounds path-like strings such as SystemState.DataString.
	maxPath = 260
)

// Message is one decoded inbound record. Records are values; receivers that
// need to keep one past the handler call keep their own copy.
type Message interface {
	Kind() Kind
}

// Exception is a host-reported rejection of an earlier request. SendID is the
// sequence index of the offending frame and Index the offending field.
type Exception struct {
	Code   ExceptionCode `json:"code"`
	SendID uint32        `json:"send_id"`
	Index  uint32        `json:"index"`
}

func (Exception) Kind() Kind { return KindException }

func (e Exception) String() string {
	return fmt.Sprintf("host exception %s send_id=%d index=%d", e.Code, e.SendID, e.Index)
}

// Open is the host's handshake reply.
type Open struct {
	ApplicationName         string `json:"application_name"`
	ApplicationVersionMajor int32  `json:"application_version_major"`
	ApplicationVersionMinor int32  `json:"application_version_minor"`
	ApplicationBuildMajor   int32  `json:"application_build_major"`
	ApplicationBuildMinor   int32  `json:"application_build_minor"`
	SimConnectVersionMajor  int32  `json:"simconnect_version_major"`
	SimConnectVersionMinor  int32  `json:"simconnect_version_minor"`
	SimConnectBuildMajor    int32  `json:"simconnect_build_major"`
	SimConnectBuildMinor    int32  `json:"simconnect_build_minor"`
	Reserved1               int32  `json:"reserved1"`
	Reserved2               int32  `json:"reserved2"`
}

func (Open) Kind() Kind { return KindOpen }

// Quit reports that the host is shutting down.
type Quit struct{}

func (Quit) Kind() Kind { return KindQuit }

// Event is a subscribed system or client event.
type Event struct {
	GroupID uint32 `json:"group_id"`
	EventID uint32 `json:"event_id"`
	Data    uint32 `json:"data"`
}

func (Event) Kind() Kind { return KindEvent }

// EventFilename is an Event carrying a file path, e.g. flight loaded.
type EventFilename struct {
	Event
	FileName string `json:"file_name"`
	Flags    uint32 `json:"flags"`
}

func (EventFilename) Kind() Kind { return KindEventFilename }

// SimObjectData carries the values of one data definition for one object.
// Data is the raw per-definition payload; decode it with datadef.DecodeValues.
type SimObjectData struct {
	Source      Kind   `json:"-"`
	RequestID   uint32 `json:"request_id"`
	ObjectID    uint32 `json:"object_id"`
	DefineID    uint32 `json:"define_id"`
	Flags       uint32 `json:"flags"`
	EntryNumber uint32 `json:"entry_number"`
	OutOf       uint32 `json:"out_of"`
	DefineCount uint32 `json:"define_count"`
	Data        []byte `json:"data"`
}

// Kind is KindSimObjectData or KindSimObjectDataByType depending on the frame.
func (m SimObjectData) Kind() Kind { return m.Source }

// SystemState answers a system-state request.
type SystemState struct {
	RequestID   uint32  `json:"request_id"`
	DataInteger int32   `json:"data_integer"`
	DataFloat   float32 `json:"data_float"`
	DataString  string  `json:"data_string"`
}

func (SystemState) Kind() Kind { return KindSystemState }

// Unhandled is a frame whose kind has no decoder. It goes to the diagnostic
// sink only.
type Unhandled struct {
	MessageKind Kind
	Version     uint32
	Payload     []byte
}

// DecodeError reports a short or malformed payload for a known kind.
type DecodeError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("recv: decode %s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var ErrNoDecoder = errors.New("recv: no decoder for kind")

type decodeFunc func(r *wire.Reader) (Message, error)

var decoders = map[Kind]decodeFunc{
	KindException:           decodeException,
	KindOpen:                decodeOpen,
	KindQuit:                func(*wire.Reader) (Message, error) { return Quit{}, nil },
	KindEvent:               decodeEvent,
	KindEventFilename:       decodeEventFilename,
	KindSimObjectData:       simObjectDecoder(KindSimObjectData),
	KindSimObjectDataByType: simObjectDecoder(KindSimObjectDataByType),
	KindSystemState:         decodeSystemState,
}

// Decodable reports whether kind has a decoder.
func Decodable(kind Kind) bool {
	_, ok := decoders[kind]
	return ok
}

// Decode turns one payload into its typed record. Trailing bytes past the
// documented fields are ignored except where a record keeps them (SimObjectData).
func Decode(kind Kind, payload []byte) (Message, error) {
	fn, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, kind)
	}
	msg, err := fn(wire.NewReader(payload))
	if err != nil {
		return nil, &DecodeError{Kind: kind, Reason: "short or malformed payload", Err: err}
	}
	return msg, nil
}

// fieldReader reads a sequence of fields, keeping the first error.
type fieldReader struct {
	r   *wire.Reader
	err error
}

func (f *fieldReader) u32() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadUint32()
	f.err = err
	return v
}

func (f *fieldReader) i32() int32 {
	return int32(f.u32())
}

func (f *fieldReader) f32() float32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadFloat32()
	f.err = err
	return v
}

func (f *fieldReader) str(n int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.r.ReadString(n)
	f.err = err
	return v
}

func (f *fieldReader) boundedStr(n int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.r.ReadBoundedString(n)
	f.err = err
	return v
}

func decodeException(r *wire.Reader) (Message, error) {
	f := fieldReader{r: r}
	m := Exception{
		Code:   ExceptionCode(f.u32()),
		SendID: f.u32(),
		Index:  f.u32(),
	}
	return m, f.err
}

func decodeOpen(r *wire.Reader) (Message, error) {
	f := fieldReader{r: r}
	m := Open{
		ApplicationName:         f.str(nameLen),
		ApplicationVersionMajor: f.i32(),
		ApplicationVersionMinor: f.i32(),
		ApplicationBuildMajor:   f.i32(),
		ApplicationBuildMinor:   f.i32(),
		SimConnectVersionMajor:  f.i32(),
		SimConnectVersionMinor:  f.i32(),
		SimConnectBuildMajor:    f.i32(),
		SimConnectBuildMinor:    f.i32(),
		Reserved1:               f.i32(),
		Reserved2:               f.i32(),
	}
	return m, f.err
}

func readEvent(f *fieldReader) Event {
	return Event{
		GroupID: f.u32(),
		EventID: f.u32(),
		Data:    f.u32(),
	}
}

func decodeEvent(r *wire.Reader) (Message, error) {
	f := fieldReader{r: r}
	m := readEvent(&f)
	return m, f.err
}

func decodeEventFilename(r *wire.Reader) (Message, error) {
	f := fieldReader{r: r}
	m := EventFilename{
		Event:    readEvent(&f),
		FileName: f.str(maxPath),
		Flags:    f.u32(),
	}
	return m, f.err
}

func simObjectDecoder(kind Kind) decodeFunc {
	return func(r *wire.Reader) (Message, error) {
		f := fieldReader{r: r}
		m := SimObjectData{
			Source:      kind,
			RequestID:   f.u32(),
			ObjectID:    f.u32(),
			DefineID:    f.u32(),
			Flags:       f.u32(),
			EntryNumber: f.u32(),
			OutOf:       f.u32(),
			DefineCount: f.u32(),
		}
		if f.err != nil {
			return nil, f.err
		}
		m.Data = r.Remaining()
		return m, nil
	}
}

func decodeSystemState(r *wire.Reader) (Message, error) {
	f := fieldReader{r: r}
	m := SystemState{
		RequestID:   f.u32(),
		DataInteger: f.i32(),
		DataFloat:   f.f32(),
		DataString:  f.boundedStr(maxPath),
	}
	return m, f.err
}
