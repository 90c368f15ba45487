package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/simlink/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrHostRequired = errors.New("transport: host required")
	ErrInvalidPort  = errors.New("transport: invalid port")
	ErrClosed       = errors.New("transport: connection closed")
)

// Config bounds dialing and writing. Reads block until the host sends or the
// connection closes; the protocol defines no read timeout.
type Config struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	MaxFrameSize   int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxFrameSize:   frame.MaxFrameSize,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	return c
}

// Conn is a byte-stream connection to the host that delivers one complete
// message per callback.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config
	logger zerolog.Logger
	wmu    sync.Mutex
	closed atomic.Bool
}

func Dial(ctx context.Context, host string, port int, cfg Config, logger zerolog.Logger) (*Conn, error) {
	if host == "" {
		return nil, ErrHostRequired
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	cfg = cfg.WithDefaults()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("addr", addr).Msg("transport.connected")
	return NewConn(raw, cfg, logger), nil
}

// NewConn wraps an established connection.
func NewConn(c net.Conn, cfg Config, logger zerolog.Logger) *Conn {
	return &Conn{
		conn:   c,
		reader: bufio.NewReaderSize(c, 64*1024),
		cfg:    cfg.WithDefaults(),
		logger: logger,
	}
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Write sends p as one unit under the write deadline.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return 0, err
	}
	return c.conn.Write(p)
}

// Serve reads size-prefixed messages and hands each one, without its size
// field, to deliver. It returns nil when the peer or Close ends the stream,
// ctx.Err() on cancellation, and the stream error otherwise.
func (c *Conn) Serve(ctx context.Context, deliver func([]byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		chunk, err := frame.ReadFrame(c.reader, c.cfg.MaxFrameSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.logger.Debug().Msg("transport.stream_closed")
				return nil
			}
			c.logger.Warn().Err(err).Msg("transport.read_failed")
			_ = c.Close()
			return err
		}
		deliver(chunk)
	}
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
