package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoop_RunsPostedFunctionsInOrder(t *testing.T) {
	l := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if !l.Post(func() { got = append(got, i) }) {
			t.Fatalf("post %d refused", i)
		}
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 runs, got %d", len(got))
	}
}

func TestLoop_SingleGoroutine(t *testing.T) {
	l := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	// No lock: the race detector flags this if functions ever overlap.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(ctx, func() { counter++ })
		}()
	}
	wg.Wait()
	var final int
	_ = l.Do(ctx, func() { final = counter })
	if final != 50 {
		t.Errorf("expected 50, got %d", final)
	}
}

func TestLoop_ClosedRefusesWork(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	l.Close()
	<-l.Done()

	if l.Post(func() {}) {
		t.Error("post after close should be refused")
	}
	if err := l.Do(ctx, func() {}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := NewLoop(1) // never started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() {}); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func TestNotifier_Alert(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier("s1", sink)
	n.Error("no roads near start of route")
	n.Notice("could not get your location")
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	alert, ok := sink.events[0].Payload.(AlertPayload)
	if sink.events[0].Type != EventAlert || !ok || alert.Title != "Error" {
		t.Errorf("unexpected alert event: %+v", sink.events[0])
	}
	if sink.events[1].Type != EventNotice {
		t.Errorf("unexpected notice event: %+v", sink.events[1])
	}
}

func TestState_Defaults(t *testing.T) {
	s := NewState("car", true)
	if !s.IgnoreSymbols || s.Fuzzy || s.WantsLocationUpdates() {
		t.Errorf("unexpected defaults: %+v", s)
	}
	s.Tracking = true
	if !s.WantsLocationUpdates() {
		t.Error("tracking should want location updates")
	}
}
