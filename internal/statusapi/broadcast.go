package statusapi

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/simlink/internal/protocol/recv"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrTooManyConnections = errors.New("statusapi: too many websocket connections")

const sendQueue = 64

// Envelope is one websocket message: a dispatched record tagged with its kind.
type Envelope struct {
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
	Record any       `json:"record"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueue),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans records out to websocket clients. A client whose queue is
// full is disconnected rather than slowing the dispatcher.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	maxConns int
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBroadcaster(maxConns int, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]struct{}),
		maxConns: maxConns,
		logger:   logger,
		now:      time.Now,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		return nil, ErrTooManyConnections
	}
	c := newClient(conn)
	b.clients[c] = struct{}{}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// Publish sends m to every connected client.
func (b *Broadcaster) Publish(m recv.Message) {
	data, err := json.Marshal(Envelope{Kind: m.Kind().String(), At: b.now().UTC(), Record: m})
	if err != nil {
		b.logger.Warn().Err(err).Stringer("kind", m.Kind()).Msg("broadcast.marshal_failed")
		return
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn().Msg("broadcast.client_too_slow")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}
