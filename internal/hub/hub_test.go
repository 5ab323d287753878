package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentprobe/agentprobe/internal/model"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server, string) {
	t.Helper()
	h := New()
	go h.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return h, srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastNewRequest_DeliversToSubscriber(t *testing.T) {
	h, _, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	// Give the register channel a moment to process before broadcasting.
	time.Sleep(50 * time.Millisecond)

	h.BroadcastNewRequest(model.Summary{ID: "req-1", Method: "POST", Host: "api.anthropic.com"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var evt Event
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.Type != "new_request" {
		t.Errorf("Type = %q, want new_request", evt.Type)
	}
}

func TestBroadcastSSEEvent_WrapsRequestID(t *testing.T) {
	h, _, wsURL := newTestServer(t)
	conn := dial(t, wsURL)
	time.Sleep(50 * time.Millisecond)

	h.BroadcastSSEEvent("req-9", model.SSEEvent{EventType: "content_block_delta", Data: "hi"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var evt Event
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.Type != "sse_event" {
		t.Errorf("Type = %q, want sse_event", evt.Type)
	}
	data, ok := evt.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data is %T, want map", evt.Data)
	}
	if data["request_id"] != "req-9" {
		t.Errorf("request_id = %v, want req-9", data["request_id"])
	}
}

func TestBroadcast_MultipleSubscribersAllReceive(t *testing.T) {
	h, _, wsURL := newTestServer(t)
	conn1 := dial(t, wsURL)
	conn2 := dial(t, wsURL)
	time.Sleep(50 * time.Millisecond)

	h.BroadcastRequestComplete(model.Summary{ID: "req-2"})

	for _, c := range []*websocket.Conn{conn1, conn2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c.ReadMessage(); err != nil {
			t.Errorf("subscriber did not receive broadcast: %v", err)
		}
	}
}
