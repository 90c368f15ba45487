package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/simlink/internal/portdiscovery"
	"github.com/danmuck/simlink/internal/protocol/recv"
	"github.com/danmuck/simlink/internal/protocol/session"
	"github.com/danmuck/simlink/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrConnectionSetup = errors.New("client: connection setup failed")
	ErrAlreadyStarted  = errors.New("client: already connected")
	ErrNotConnected    = errors.New("client: not connected")
	ErrClosed          = errors.New("client: connection closed")
)

type Config struct {
	Session            session.Config
	Host               string
	Transport          transport.Config
	Backoff            BackoffConfig
	MaxConnectAttempts int
}

func DefaultConfig() Config {
	return Config{
		Session:            session.Config{ProtocolVersion: 4},
		Host:               "127.0.0.1",
		Transport:          transport.DefaultConfig(),
		Backoff:            DefaultBackoff(),
		MaxConnectAttempts: 1,
	}
}

// Client owns one host connection: the transport, the session writing to it
// and the read loop feeding the dispatcher. Open and Quit are handled by the
// client itself; use OnOpen and OnQuit to observe them.
type Client struct {
	cfg        Config
	resolver   portdiscovery.Resolver
	logger     zerolog.Logger
	rng        *rand.Rand
	dispatcher *recv.Dispatcher

	mu      sync.Mutex
	conn    *transport.Conn
	sess    *session.Session
	cancel  context.CancelFunc
	opened  chan struct{}
	done    chan struct{}
	err     error
	onOpen  func(recv.Open)
	onQuit  func()
	started bool
}

func New(cfg Config, resolver portdiscovery.Resolver, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, transport.ErrHostRequired
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: no port resolver", ErrConnectionSetup)
	}
	c := &Client{
		cfg:        cfg,
		resolver:   resolver,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		dispatcher: recv.NewDispatcher(logger),
		opened:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.dispatcher.Reserve(recv.KindOpen, recv.Typed(c.handleOpen))
	c.dispatcher.Reserve(recv.KindQuit, recv.Typed(c.handleQuit))
	return c, nil
}

// Dispatcher is where callers register handlers for inbound records. Open and
// Quit are reserved by the client; use OnOpen and OnQuit for those.
func (c *Client) Dispatcher() *recv.Dispatcher { return c.dispatcher }

func (c *Client) OnOpen(fn func(recv.Open)) {
	c.mu.Lock()
	c.onOpen = fn
	c.mu.Unlock()
}

func (c *Client) OnQuit(fn func()) {
	c.mu.Lock()
	c.onQuit = fn
	c.mu.Unlock()
}

// Session returns the active session, or nil before Connect succeeds.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Connect resolves the port, dials with retry, sends the handshake and starts
// the read loop. It returns once the handshake is written; use WaitOpen for
// the host's reply.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	port, err := c.resolver.Resolve(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("%w: resolve port: %w", ErrConnectionSetup, err))
	}

	conn, err := c.dial(ctx, port)
	if err != nil {
		return c.fail(fmt.Errorf("%w: dial %s:%d: %w", ErrConnectionSetup, c.cfg.Host, port, err))
	}

	sess, err := session.New(c.cfg.Session, conn, c.logger)
	if err != nil {
		_ = conn.Close()
		return c.fail(err)
	}
	if err := sess.Handshake(); err != nil {
		_ = conn.Close()
		return c.fail(fmt.Errorf("%w: handshake: %w", ErrConnectionSetup, err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.sess = sess
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(runCtx, conn, sess)
	c.logger.Info().
		Str("host", c.cfg.Host).
		Int("port", port).
		Uint32("protocol", c.cfg.Session.ProtocolVersion).
		Msg("client.connected")
	return nil
}

// fail ends a Connect that never reached the read loop.
func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
	c.logger.Warn().Err(err).Msg("client.connect_failed")
	return err
}

func (c *Client) dial(ctx context.Context, port int) (*transport.Conn, error) {
	var attempt int
	for {
		attempt++
		conn, err := transport.Dial(ctx, c.cfg.Host, port, c.cfg.Transport, c.logger)
		if err == nil {
			return conn, nil
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Int("port", port).Msg("client.dial_failed")
		if !c.shouldRetry(attempt) {
			return nil, err
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) readLoop(ctx context.Context, conn *transport.Conn, sess *session.Session) {
	err := conn.Serve(ctx, func(chunk []byte) {
		if err := c.dispatcher.Dispatch(chunk); err != nil {
			c.logger.Warn().Err(err).Msg("client.dispatch_failed")
		}
	})
	sess.MarkClosed()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
	c.logger.Info().Err(err).Msg("client.read_loop_stopped")
}

func (c *Client) handleOpen(o recv.Open) {
	c.mu.Lock()
	sess := c.sess
	fn := c.onOpen
	c.mu.Unlock()
	if sess == nil {
		return
	}
	sess.MarkOpen(o)
	select {
	case <-c.opened:
	default:
		close(c.opened)
	}
	if fn != nil {
		fn(o)
	}
}

func (c *Client) handleQuit(recv.Quit) {
	c.mu.Lock()
	sess := c.sess
	fn := c.onQuit
	c.mu.Unlock()
	if sess != nil {
		sess.MarkClosed()
	}
	if fn != nil {
		fn()
	}
}

// WaitOpen blocks until the host's Open reply arrives, the connection ends
// or ctx is done.
func (c *Client) WaitOpen(ctx context.Context) (recv.Open, error) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return recv.Open{}, ErrNotConnected
	}
	select {
	case <-c.opened:
		if o, ok := c.Session().Host(); ok {
			return o, nil
		}
		return recv.Open{}, ErrClosed
	case <-c.done:
		if err := c.Err(); err != nil {
			return recv.Open{}, fmt.Errorf("%w: %w", ErrClosed, err)
		}
		return recv.Open{}, ErrClosed
	case <-ctx.Done():
		return recv.Open{}, ctx.Err()
	}
}

// Done is closed when the read loop stops.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the read loop stopped; nil for a clean close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	cancel()
	err := conn.Close()
	<-c.done
	return err
}

// Stats snapshots the active session.
func (c *Client) Stats() (session.Stats, bool) {
	sess := c.Session()
	if sess == nil {
		return session.Stats{}, false
	}
	return sess.Stats(), true
}
