package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"compass/internal/modules/navigation"
	"compass/internal/modules/session"
)

type recordingInbound struct {
	mu      sync.Mutex
	fixes   [][]navigation.Report
	errs    []string
	arrived chan struct{}
}

func (r *recordingInbound) LocationFix(_ context.Context, _ string, reports []navigation.Report) error {
	r.mu.Lock()
	r.fixes = append(r.fixes, reports)
	r.mu.Unlock()
	r.arrived <- struct{}{}
	return nil
}

func (r *recordingInbound) LocationError(_ context.Context, _ string, message string) error {
	r.mu.Lock()
	r.errs = append(r.errs, message)
	r.mu.Unlock()
	r.arrived <- struct{}{}
	return nil
}

func startHub(t *testing.T) (*Hub, *recordingInbound, *httptest.Server) {
	t.Helper()
	in := &recordingInbound{arrived: make(chan struct{}, 8)}
	hub := NewHub(in, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, r.URL.Query().Get("session"))
	}))
	t.Cleanup(srv.Close)
	return hub, in, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitArrived(t *testing.T, in *recordingInbound) {
	t.Helper()
	select {
	case <-in.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}
}

func TestHub_InboundFixes(t *testing.T) {
	_, in, srv := startHub(t)
	conn := dial(t, srv, "s1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_fix","payload":{"lat":51.5,"lng":-0.1,"h_accuracy":5}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitArrived(t, in)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_fix","payload":[{"lat":1,"lng":1},{"lat":2,"lng":2}]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitArrived(t, in)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_error","payload":{"message":"denied"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitArrived(t, in)

	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.fixes) != 2 || len(in.fixes[0]) != 1 || len(in.fixes[1]) != 2 {
		t.Fatalf("unexpected fixes %+v", in.fixes)
	}
	if *in.fixes[0][0].HorizontalAccuracy != 5 {
		t.Errorf("accuracy lost: %+v", in.fixes[0][0])
	}
	if len(in.errs) != 1 || in.errs[0] != "denied" {
		t.Errorf("unexpected errors %v", in.errs)
	}
}

func TestHub_MalformedLocationErrorDropped(t *testing.T) {
	_, in, srv := startHub(t)
	conn := dial(t, srv, "s1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_error","payload":"denied"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_error"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitArrived(t, in)

	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.errs) != 1 || in.errs[0] != "" {
		t.Errorf("only the well-formed message should arrive, got %q", in.errs)
	}
}

func TestHub_PublishReachesSessionOnly(t *testing.T) {
	hub, in, srv := startHub(t)
	mine := dial(t, srv, "s1")
	other := dial(t, srv, "s2")

	// A round trip through the inbound path proves both clients are registered.
	for _, c := range []*websocket.Conn{mine, other} {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_error","payload":{}}`))
		waitArrived(t, in)
	}

	hub.Publish("s1", session.Event{Type: session.EventNotice, Payload: session.NoticePayload{Message: "hello"}, Timestamp: time.Now()})

	mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := mine.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			Message string `json:"message"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "notice" || ev.Payload.Message != "hello" {
		t.Errorf("unexpected event %s", data)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("other session received the event")
	}
}

func TestHub_CloseSessionDisconnects(t *testing.T) {
	hub, in, srv := startHub(t)
	conn := dial(t, srv, "s1")
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location_error","payload":{}}`))
	waitArrived(t, in)

	hub.CloseSession("s1")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close")
	}
}

func TestDecodeReports(t *testing.T) {
	one, err := DecodeReports(json.RawMessage(`{"lat":1,"lng":2}`))
	if err != nil || len(one) != 1 || !one[0].HasPosition() || *one[0].Lng != 2 {
		t.Errorf("single report: %+v %v", one, err)
	}
	if _, err := DecodeReports(json.RawMessage(`"nope"`)); err == nil {
		t.Error("expected an error for a non-object payload")
	}
}
