package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/simlink/internal/logging"
	"github.com/danmuck/simlink/internal/protocol/frame"
	"github.com/danmuck/simlink/internal/testutil/testlog"
)

func listen(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, host, port
}

func TestServeDeliversWholeMessages(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		msg := append(frame.EncodeInbound(4, 2, make([]byte, 300)), frame.EncodeInbound(4, 4, []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0})...)
		// split writes so the reader must reassemble across segments
		_, _ = conn.Write(msg[:7])
		time.Sleep(10 * time.Millisecond)
		_, _ = conn.Write(msg[7:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, host, port, Config{}, logging.For("transport_test"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var got [][]byte
	if err := c.Serve(ctx, func(b []byte) { got = append(got, b) }); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	first, _ := frame.ParseInbound(got[0])
	second, _ := frame.ParseInbound(got[1])
	if first.Kind != 2 || len(first.Payload) != 300 || second.Kind != 4 || len(second.Payload) != 12 {
		t.Fatalf("unexpected messages: %+v / %+v", first, second)
	}
}

func TestWriteReachesPeer(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	c, err := Dial(context.Background(), host, port, DefaultConfig(), logging.For("transport_test"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case b := <-received:
		if string(b) != "hello" {
			t.Fatalf("unexpected bytes: %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("peer did not receive write")
	}

	_ = c.Close()
	if _, err := c.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			time.Sleep(time.Second)
			conn.Close()
		}
	}()

	c, err := Dial(context.Background(), host, port, DefaultConfig(), logging.For("transport_test"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Serve(ctx, func([]byte) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestServeRejectsOversizedFrame(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write(frame.EncodeInbound(4, 8, make([]byte, 256)))
		time.Sleep(200 * time.Millisecond)
	}()

	c, err := Dial(context.Background(), host, port, Config{MaxFrameSize: 64}, logging.For("transport_test"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := c.Serve(context.Background(), func([]byte) {}); !errors.Is(err, frame.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDialValidatesAddress(t *testing.T) {
	testlog.Start(t)
	if _, err := Dial(context.Background(), "", 500, DefaultConfig(), logging.For("transport_test")); !errors.Is(err, ErrHostRequired) {
		t.Fatalf("expected ErrHostRequired, got %v", err)
	}
	if _, err := Dial(context.Background(), "localhost", 0, DefaultConfig(), logging.For("transport_test")); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
}
