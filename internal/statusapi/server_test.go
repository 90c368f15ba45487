package statusapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/simlink/internal/auth"
	"github.com/danmuck/simlink/internal/logging"
	"github.com/danmuck/simlink/internal/protocol/recv"
	"github.com/danmuck/simlink/internal/protocol/session"
	"github.com/danmuck/simlink/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

type fixedStats struct {
	st session.Stats
	ok bool
}

func (f fixedStats) Stats() (session.Stats, bool) { return f.st, f.ok }

func newTestServer(t *testing.T, stats StatsSource, b *Broadcaster) *httptest.Server {
	t.Helper()
	testlog.Start(t)
	s := New(Options{Stats: stats, Broadcaster: b, Logger: logging.For("statusapi_test")})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthStatusAndMetrics(t *testing.T) {
	stats := fixedStats{ok: true, st: session.Stats{
		ProtocolVersion: 4,
		SequenceIndex:   3,
		PacketsSent:     3,
		BytesSent:       600,
		ConnectionOpen:  true,
		Definitions:     []uint32{1},
	}}
	srv := newTestServer(t, stats, nil)

	if code, body := get(t, srv.URL+"/health"); code != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("health: %d %s", code, body)
	}

	code, body := get(t, srv.URL+"/status")
	if code != http.StatusOK {
		t.Fatalf("status: %d %s", code, body)
	}
	var got session.Stats
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if got.SequenceIndex != 3 || got.BytesSent != 600 || !got.ConnectionOpen || len(got.Definitions) != 1 {
		t.Fatalf("unexpected status: %+v", got)
	}

	if code, body := get(t, srv.URL+"/metrics"); code != http.StatusOK || !strings.Contains(body, "simlink_session_bytes_sent_total") {
		t.Fatalf("metrics: %d missing session counters", code)
	}
}

func TestStatusWithoutSession(t *testing.T) {
	srv := newTestServer(t, fixedStats{}, nil)
	if code, _ := get(t, srv.URL+"/status"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if code, _ := get(t, srv.URL+"/events"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for disabled events, got %d", code)
	}
}

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, b.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsStreamPublishedRecords(t *testing.T) {
	b := NewBroadcaster(4, logging.For("statusapi_test"))
	srv := newTestServer(t, fixedStats{}, b)
	conn := dialEvents(t, srv)
	waitClients(t, b, 1)

	b.Publish(recv.Event{GroupID: 0xFFFFFFFF, EventID: 2, Data: 1})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var env struct {
		Kind   string    `json:"kind"`
		Record recv.Event `json:"record"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Kind != recv.KindEvent.String() || env.Record.EventID != 2 || env.Record.Data != 1 {
		t.Fatalf("unexpected envelope: %s", msg)
	}

	_ = conn.Close()
	waitClients(t, b, 0)
}

func TestEventsConnectionLimit(t *testing.T) {
	b := NewBroadcaster(1, logging.For("statusapi_test"))
	srv := newTestServer(t, fixedStats{}, b)
	dialEvents(t, srv)
	waitClients(t, b, 1)

	second := dialEvents(t, srv)
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("expected try-again-later close, got %v", err)
	}
	if b.ClientCount() != 1 {
		t.Fatalf("limit exceeded: %d clients", b.ClientCount())
	}
}

func TestCheckOrigin(t *testing.T) {
	testlog.Start(t)
	s := New(Options{AllowedOrigins: []string{"http://dash.local/"}, Logger: logging.For("statusapi_test")})
	cases := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "127.0.0.1:9480", true},
		{"http://dash.local", "127.0.0.1:9480", true},
		{"http://127.0.0.1:9480", "127.0.0.1:9480", true},
		{"http://evil.example", "127.0.0.1:9480", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		r.Host = tc.host
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := s.checkOrigin(r); got != tc.want {
			t.Fatalf("origin %q: got %v want %v", tc.origin, got, tc.want)
		}
	}
}

func TestTokenGuardsStatusAndEvents(t *testing.T) {
	testlog.Start(t)
	s := New(Options{
		Stats:       fixedStats{ok: true},
		Broadcaster: NewBroadcaster(1, logging.For("statusapi_test")),
		Auth:        auth.StaticToken{Token: "secret"},
		Logger:      logging.For("statusapi_test"),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	if code, _ := get(t, srv.URL+"/status"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := get(t, srv.URL+"/status?token=secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
	if code, _ := get(t, srv.URL+"/health"); code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", code)
	}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected websocket upgrade to be refused")
	}
}
