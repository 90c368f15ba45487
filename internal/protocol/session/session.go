package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/danmuck/simlink/internal/observability"
	"github.com/danmuck/simlink/internal/protocol/datadef"
	"github.com/danmuck/simlink/internal/protocol/frame"
	"github.com/danmuck/simlink/internal/protocol/recv"
	"github.com/danmuck/simlink/internal/protocol/wire"
	"github.com/rs/zerolog"
)

var (
	ErrNotOpen         = errors.New("session: connection not open")
	ErrAlreadyOpen     = errors.New("session: connection already open")
	ErrEmptyDefinition = errors.New("session: definition has no fields")
	ErrNilWriter       = errors.New("session: nil writer")
)

var handshakeMagic = []byte{0x00, 'X', 'S', 'F'}

// TransportError wraps a failed write. The frame was not delivered and no
// retry is attempted.
type TransportError struct {
	Op  frame.Opcode
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: write %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Stats is a snapshot of session state.
type Stats struct {
	ProtocolVersion uint32   `json:"protocol_version"`
	SequenceIndex   uint32   `json:"sequence_index"`
	PacketsSent     uint64   `json:"packets_sent"`
	BytesSent       uint64   `json:"bytes_sent"`
	ConnectionOpen  bool     `json:"connection_open"`
	Definitions     []uint32 `json:"definitions"`
}

// Session encodes requests into one reused buffer and writes each as a single
// frame. All sends are serialized by mu.
type Session struct {
	cfg    Config
	w      io.Writer
	logger zerolog.Logger

	mu          sync.Mutex
	buf         *wire.Buffer
	seq         uint32
	packetsSent uint64
	bytesSent   uint64

	open atomic.Bool
	host atomic.Pointer[recv.Open]

	schemas *datadef.Catalog
	known   *datadef.Catalog
}

// ObjectRequest is the argument set of RequestDataOnSimObject.
type ObjectRequest struct {
	RequestID    uint32
	DefinitionID uint32
	ObjectID     uint32
	Period       datadef.Period
	Flags        int32
	Origin       uint32
	Interval     uint32
	Limit        uint32
}

func New(cfg Config, w io.Writer, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNilWriter
	}
	return &Session{
		cfg:     cfg,
		w:       w,
		logger:  logger,
		buf:     wire.NewBuffer(wire.DefaultCapacity),
		schemas: datadef.NewCatalog(),
		known:   datadef.NewCatalog(),
	}, nil
}

func (s *Session) Config() Config { return s.cfg }

// Handshake sends the open request. The connection counts as open only after
// the host's Open reply is passed to MarkOpen.
func (s *Session) Handshake() error {
	if s.open.Load() {
		return ErrAlreadyOpen
	}
	hv, ok := handshakeTable[s.cfg.ProtocolVersion]
	if !ok {
		return &ConfigurationError{Field: "protocol_version", Value: s.cfg.ProtocolVersion, Reason: "no handshake build"}
	}
	return s.send(frame.OpOpen, func(b *wire.Buffer) {
		b.PutString(s.cfg.ApplicationName, nameWidth)
		b.PutInt32(0)
		b.PutBytes(handshakeMagic)
		b.PutInt32(hv.VersionMajor)
		b.PutInt32(hv.VersionMinor)
		b.PutInt32(hv.BuildMajor)
		b.PutInt32(hv.BuildMinor)
	})
}

// MarkOpen records the host's handshake reply and enables requests.
func (s *Session) MarkOpen(o recv.Open) {
	s.host.Store(&o)
	s.open.Store(true)
	s.logger.Info().
		Str("host", o.ApplicationName).
		Int32("version_major", o.ApplicationVersionMajor).
		Int32("build_major", o.SimConnectBuildMajor).
		Msg("session.open")
}

// MarkClosed disables requests, e.g. after Quit or transport loss.
func (s *Session) MarkClosed() {
	if s.open.Swap(false) {
		s.logger.Info().Msg("session.closed")
	}
}

func (s *Session) IsOpen() bool { return s.open.Load() }

// Host returns the Open reply, if one was received.
func (s *Session) Host() (recv.Open, bool) {
	o := s.host.Load()
	if o == nil {
		return recv.Open{}, false
	}
	return *o, true
}

// RegisterDataDefinition appends one datum to definitionID on the host.
func (s *Session) RegisterDataDefinition(definitionID uint32, f datadef.Field) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	err := s.send(frame.OpAddToDataDefinition, func(b *wire.Buffer) {
		b.PutUint32(definitionID)
		b.PutString(f.DatumName, nameWidth)
		b.PutString(f.UnitsName, nameWidth)
		b.PutInt32(int32(f.DataType))
		b.PutFloat32(f.Epsilon)
		b.PutUint32(f.DatumID)
	})
	if err != nil {
		return err
	}
	s.schemas.Add(definitionID, f)
	return nil
}

// RegisterClass registers every field under definitionID in order and adds
// the ID to the known set once at least one field was sent. It returns the
// number of fields sent before any failure.
func (s *Session) RegisterClass(definitionID uint32, fields []datadef.Field) (int, error) {
	if len(fields) == 0 {
		return 0, ErrEmptyDefinition
	}
	added := 0
	var firstErr error
	for _, f := range fields {
		if err := s.RegisterDataDefinition(definitionID, f); err != nil {
			firstErr = fmt.Errorf("register %q: %w", f.DatumName, err)
			break
		}
		added++
	}
	if added > 0 {
		s.known.Add(definitionID)
	}
	return added, firstErr
}

func (s *Session) SubscribeToSystemEvent(clientEventID uint32, eventName string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(frame.OpSubscribeToSystemEvent, func(b *wire.Buffer) {
		b.PutUint32(clientEventID)
		b.PutString(eventName, nameWidth)
	})
}

func (s *Session) RequestDataOnSimObject(req ObjectRequest) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(frame.OpRequestDataOnSimObject, func(b *wire.Buffer) {
		b.PutUint32(req.RequestID)
		b.PutUint32(req.DefinitionID)
		b.PutUint32(req.ObjectID)
		b.PutInt32(int32(req.Period))
		b.PutInt32(req.Flags)
		b.PutUint32(req.Origin)
		b.PutUint32(req.Interval)
		b.PutUint32(req.Limit)
	})
}

func (s *Session) RequestDataOnSimObjectType(requestID, definitionID, radiusMeters uint32, objectType datadef.ObjectType) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(frame.OpRequestDataOnSimObjectType, func(b *wire.Buffer) {
		b.PutUint32(requestID)
		b.PutUint32(definitionID)
		b.PutUint32(radiusMeters)
		b.PutInt32(int32(objectType))
	})
}

// Definition returns the fields registered under id, for decoding
// SimObjectData.Data.
func (s *Session) Definition(id uint32) (datadef.Definition, bool) {
	return s.schemas.Get(id)
}

// KnownDefinitions lists IDs registered through RegisterClass.
func (s *Session) KnownDefinitions() []uint32 {
	return s.known.IDs()
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		ProtocolVersion: s.cfg.ProtocolVersion,
		SequenceIndex:   s.seq,
		PacketsSent:     s.packetsSent,
		BytesSent:       s.bytesSent,
	}
	s.mu.Unlock()
	st.ConnectionOpen = s.open.Load()
	st.Definitions = s.known.IDs()
	return st
}

func (s *Session) requireOpen() error {
	if !s.open.Load() {
		return ErrNotOpen
	}
	return nil
}

// send runs reset, encode, finalize and write as one critical section.
// Encoding failures leave the sequence index untouched.
func (s *Session) send(op frame.Opcode, encode func(*wire.Buffer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Clean()
	encode(s.buf)
	h, err := frame.Finalize(s.buf, s.cfg.ProtocolVersion, op, s.seq)
	if err != nil {
		observability.RecordSendFailure(op.String())
		return fmt.Errorf("session: encode %s: %w", op, err)
	}
	s.seq++

	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		observability.RecordSendFailure(op.String())
		s.logger.Warn().Err(err).Stringer("opcode", op).Uint32("seq", h.SequenceIndex).Msg("session.send_failed")
		return &TransportError{Op: op, Err: err}
	}
	s.packetsSent++
	s.bytesSent += uint64(h.Size)
	observability.RecordPacketSent(op.String(), int(h.Size))
	s.logger.Debug().
		Stringer("opcode", op).
		Uint32("seq", h.SequenceIndex).
		Uint32("bytes", h.Size).
		Msg("session.send")
	return nil
}
