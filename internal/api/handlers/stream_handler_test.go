package handlers

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
)

func TestStreamRequiresUpgrade(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/stream", nil))
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 without an upgrade, got %d", resp.StatusCode)
	}
}

func TestStreamSearch(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	if status, body := call(t, app, "POST", "/api/v1/records", llmRecord); status != http.StatusCreated {
		t.Fatalf("POST /records = %d %v", status, body)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() map[string]any {
		t.Helper()
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(map[string]any{"type": "search", "query": map[string]any{"text": "transformer"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg["type"] != "record" {
		t.Fatalf("expected a record message, got %v", msg)
	}
	if msg := read(); msg["type"] != "complete" || msg["total"].(float64) != 1 {
		t.Fatalf("expected a complete message with total 1, got %v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "search", "query": map[string]any{"sort_by": "popularity"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg["type"] != "error" {
		t.Fatalf("expected an error message for an invalid query, got %v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "chat"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg["type"] != "error" {
		t.Fatalf("expected an error message for an unknown type, got %v", msg)
	}
}
