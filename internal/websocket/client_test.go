package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// pipe returns a Client wrapping the server side of a live connection and the
// peer's end of it.
func pipe(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(ts.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	client := NewClient(<-accepted, "127.0.0.1:1", nil)
	t.Cleanup(func() { client.Close(context.Background()) })
	return client, peer
}

// TestClientID tests that each client has a unique UUID
func TestClientID(t *testing.T) {
	t.Parallel()

	a, _ := pipe(t)
	b, _ := pipe(t)

	if a.ID() == b.ID() {
		t.Errorf("duplicate ID generated: %s", a.ID())
	}
	for _, id := range []string{a.ID(), b.ID()} {
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("ID %s is not a valid UUID: %v", id, err)
		}
	}
	if a.RemoteAddr() != "127.0.0.1:1" {
		t.Errorf("RemoteAddr = %q", a.RemoteAddr())
	}
}

// TestClientSendText tests that frames arrive as text in order
func TestClientSendText(t *testing.T) {
	t.Parallel()

	client, peer := pipe(t)
	for _, msg := range []string{"one", "two", "three"} {
		if err := client.Send(context.Background(), []byte(msg)); err != nil {
			t.Fatalf("Send(%q): %v", msg, err)
		}
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"one", "two", "three"} {
		kind, data, err := peer.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind != websocket.TextMessage || string(data) != want {
			t.Errorf("got %d %q, want text %q", kind, data, want)
		}
	}
}

// TestClientCloseFlushesQueue tests that frames queued before close are still delivered
func TestClientCloseFlushesQueue(t *testing.T) {
	t.Parallel()

	client, peer := pipe(t)
	client.Send(context.Background(), []byte(`{"action":"join_nack"}`))
	client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "bye")

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("queued frame lost: %v", err)
	}
	if string(data) != `{"action":"join_nack"}` {
		t.Errorf("unexpected frame %q", data)
	}

	_, _, err = peer.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation || ce.Text != "bye" {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

// TestClientSendAfterClose tests that a closed client rejects sends
func TestClientSendAfterClose(t *testing.T) {
	t.Parallel()

	client, _ := pipe(t)
	if !client.IsAlive() {
		t.Fatal("new client should be alive")
	}

	client.Close(context.Background())
	if client.IsAlive() {
		t.Error("closed client reports alive")
	}
	if err := client.Send(context.Background(), []byte("x")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after close = %v, want ErrConnectionClosed", err)
	}
	if err := client.Close(context.Background()); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

// TestClientContextCancellation tests that the context ends once the connection is torn down
func TestClientContextCancellation(t *testing.T) {
	t.Parallel()

	client, _ := pipe(t)
	select {
	case <-client.Context().Done():
		t.Fatal("context cancelled before close")
	default:
	}

	client.Close(context.Background())
	select {
	case <-client.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after close")
	}
}

// TestClientSendCancelledContext tests that a done caller context is honoured
func TestClientSendCancelledContext(t *testing.T) {
	t.Parallel()

	client, _ := pipe(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Send(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Send = %v, want context.Canceled", err)
	}
}

// TestClientQueueFull tests that a stalled peer makes Send fail fast instead of blocking
func TestClientQueueFull(t *testing.T) {
	t.Parallel()

	client, _ := pipe(t)
	payload := []byte(strings.Repeat("x", 64<<10))

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 100*sendBufferSize; i++ {
			if err := client.Send(context.Background(), payload); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSendQueueFull) {
			t.Fatalf("expected ErrSendQueueFull, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked on a stalled peer")
	}
}

// BenchmarkClientSend benchmarks queueing a frame
func BenchmarkClientSend(b *testing.B) {
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _ := upgrader.Upgrade(w, r, nil)
		accepted <- conn
	}))
	defer ts.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer peer.Close()
	go func() {
		for {
			if _, _, err := peer.ReadMessage(); err != nil {
				return
			}
		}
	}()

	client := NewClient(<-accepted, "bench", nil)
	defer client.Close(context.Background())
	data := []byte(`{"event":"broadcast","payload":"hi"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.Send(context.Background(), data)
	}
}
