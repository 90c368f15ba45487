package recv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/simlink/internal/observability"
	"github.com/danmuck/simlink/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// ErrReservedKind is returned when a caller tries to replace a handler its
// owner installed with Reserve.
var ErrReservedKind = errors.New("recv: kind reserved by owner")

// Handler receives one decoded record on the transport's delivery goroutine.
// It must not block for long.
type Handler func(Message)

// DiagnosticFunc receives frames no decoder understands.
type DiagnosticFunc func(Unhandled)

// Dispatcher routes inbound frames to at most one handler per kind.
// Fan-out to several consumers is the caller's concern.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[Kind]Handler
	reserved   map[Kind]struct{}
	diagnostic DiagnosticFunc
	logger     zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Kind]Handler),
		reserved: make(map[Kind]struct{}),
		logger:   logger,
	}
}

// Handle installs h for kind, replacing any previous handler. A nil h removes
// it. Kinds claimed with Reserve cannot be replaced or removed.
func (d *Dispatcher) Handle(kind Kind, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.reserved[kind]; ok {
		return fmt.Errorf("%w: %s", ErrReservedKind, kind)
	}
	if h == nil {
		delete(d.handlers, kind)
		return nil
	}
	d.handlers[kind] = h
	return nil
}

// Reserve installs h for kind and locks it against later Handle calls. The
// owner of the dispatcher uses it for records it must always see.
func (d *Dispatcher) Reserve(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
	d.reserved[kind] = struct{}{}
}

// Typed adapts fn to a Handler; records of another type are dropped.
func Typed[T Message](fn func(T)) Handler {
	return func(m Message) {
		if v, ok := m.(T); ok {
			fn(v)
		}
	}
}

// On installs a handler typed to the record kind carries.
func On[T Message](d *Dispatcher, kind Kind, fn func(T)) error {
	return d.Handle(kind, Typed(fn))
}

// OnUnhandled sets the diagnostic sink for kinds without a decoder.
func (d *Dispatcher) OnUnhandled(fn DiagnosticFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diagnostic = fn
}

// Dispatch parses one delivered chunk ([version][kind][payload]) and routes it.
// Only header and decode failures are returned; unknown kinds are not errors.
// Every call is independent of earlier failures.
func (d *Dispatcher) Dispatch(chunk []byte) error {
	in, err := frame.ParseInbound(chunk)
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}
	kind := Kind(in.Kind)

	if !Decodable(kind) {
		observability.RecordFrameReceived(kind.Label(), false)
		d.logger.Debug().
			Stringer("kind", kind).
			Uint32("version", in.Version).
			Int("payload_len", len(in.Payload)).
			Msg("dispatch.unhandled")
		d.mu.RLock()
		sink := d.diagnostic
		d.mu.RUnlock()
		if sink != nil {
			sink(Unhandled{MessageKind: kind, Version: in.Version, Payload: in.Payload})
		}
		return nil
	}

	msg, err := Decode(kind, in.Payload)
	if err != nil {
		observability.RecordDecodeError(kind.Label())
		d.logger.Warn().Err(err).Stringer("kind", kind).Int("payload_len", len(in.Payload)).Msg("dispatch.decode_failed")
		return err
	}

	if ex, ok := msg.(Exception); ok {
		observability.RecordHostException(ex.Code.Label())
		d.logger.Warn().
			Stringer("code", ex.Code).
			Uint32("send_id", ex.SendID).
			Uint32("index", ex.Index).
			Msg("dispatch.host_exception")
	}

	d.mu.RLock()
	h := d.handlers[kind]
	d.mu.RUnlock()
	observability.RecordFrameReceived(kind.Label(), h != nil)
	if h == nil {
		d.logger.Trace().Stringer("kind", kind).Msg("dispatch.no_handler")
		return nil
	}
	h(msg)
	return nil
}
