package events

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

type published struct {
	key      string
	v        any
	deadline bool
}

type fakePublisher struct {
	err   error
	calls chan published
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, v any) error {
	_, ok := ctx.Deadline()
	f.calls <- published{key: routingKey, v: v, deadline: ok}
	return f.err
}

// lineWriter hands each log line to a channel.
type lineWriter struct {
	mu    sync.Mutex
	lines chan string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines <- string(p)
	return len(p), nil
}

func captureLog(t *testing.T) *lineWriter {
	t.Helper()
	w := &lineWriter{lines: make(chan string, 4)}
	log.SetOutput(w)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return w
}

func TestPublishAsync_NilPublisher(t *testing.T) {
	PublishAsync(nil, KeySessionOpened, map[string]string{"session_id": "s1"})
}

func TestPublishAsync_Delivers(t *testing.T) {
	p := &fakePublisher{calls: make(chan published, 1)}
	PublishAsync(p, KeyRouteCompleted, "payload")

	select {
	case got := <-p.calls:
		if got.key != KeyRouteCompleted || got.v != "payload" {
			t.Errorf("unexpected publish %+v", got)
		}
		if !got.deadline {
			t.Error("publish should run under a timeout")
		}
	case <-time.After(time.Second):
		t.Fatal("event was never published")
	}
}

func TestPublishAsync_LogsFailure(t *testing.T) {
	w := captureLog(t)
	p := &fakePublisher{err: errors.New("broker down"), calls: make(chan published, 1)}
	PublishAsync(p, KeySessionClosed, nil)

	select {
	case line := <-w.lines:
		if !strings.Contains(line, "events: broker down") {
			t.Errorf("unexpected log line %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("publish failure was not logged")
	}
	if len(p.calls) != 1 {
		t.Errorf("expected one publish, got %d", len(p.calls))
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), KeyNavigationChange, struct{}{}); err != nil {
		t.Errorf("nop publish: %v", err)
	}
}
