package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []string
	got    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan struct{}, 1024)}
}

func (s *recordingSink) Apply(raw []byte) error {
	s.mu.Lock()
	s.frames = append(s.frames, string(raw))
	s.mu.Unlock()
	select {
	case s.got <- struct{}{}:
	default:
	}
	return errors.New("sink errors are ignored")
}

func (s *recordingSink) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i+1)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feedServer sends frames on each connection, then closes it if closeAfter
// is set, or holds it open otherwise.
func feedServer(t *testing.T, frames []string, closeAfter bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}
		// Hold until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func TestClient_DeliversTextFrames(t *testing.T) {
	srv, _ := feedServer(t, []string{`{"type":"a"}`, `{"type":"b"}`}, false)
	c := NewClient(Config{URL: wsURL(srv)}, quietLogger())
	sink := newRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx, sink) }()

	frames := sink.wait(t, 2)
	if frames[0] != `{"type":"a"}` || frames[1] != `{"type":"b"}` {
		t.Errorf("frames = %q", frames)
	}
	if !c.Connected() || c.Frames() != 2 {
		t.Errorf("connected=%v frames=%d", c.Connected(), c.Frames())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if c.Connected() {
		t.Errorf("still connected after Run returned")
	}
}

func TestClient_Reconnects(t *testing.T) {
	srv, conns := feedServer(t, []string{`{"type":"init_client_data"}`}, true)
	c := NewClient(Config{URL: wsURL(srv), MinBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}, quietLogger())
	sink := newRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, sink) }()

	sink.wait(t, 3)
	if n := conns.Load(); n < 3 {
		t.Errorf("connections = %d, want >= 3", n)
	}
	if c.Connects() < 3 {
		t.Errorf("Connects = %d", c.Connects())
	}
}

func TestClient_DialFailureRetriesUntilCancel(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1/feed", MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx, newRecordingSink()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if c.LastError() == "" {
		t.Errorf("LastError empty after failed dials")
	}
}

func TestClient_RequiresURL(t *testing.T) {
	if err := NewClient(Config{}, quietLogger()).Run(context.Background(), newRecordingSink()); err == nil {
		t.Fatal("expected error")
	}
}
