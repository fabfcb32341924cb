package location

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/infra"
	"compass/internal/types"
)

type memStore struct {
	mu      sync.Mutex
	points  []TrackPoint
	batches int
	deleted []string
	flushed chan int
}

func newMemStore() *memStore {
	return &memStore{flushed: make(chan int, 16)}
}

func (m *memStore) AppendBatch(_ context.Context, points []TrackPoint) error {
	m.mu.Lock()
	m.points = append(m.points, points...)
	m.batches++
	m.mu.Unlock()
	m.flushed <- len(points)
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, sessionID)
	kept := m.points[:0]
	for _, p := range m.points {
		if p.SessionID != sessionID {
			kept = append(kept, p)
		}
	}
	m.points = kept
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func waitFlush(t *testing.T, m *memStore) int {
	t.Helper()
	select {
	case n := <-m.flushed:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no flush")
		return 0
	}
}

func TestRecorder_FlushesFullBatch(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store, 16, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if !r.Append("s1", types.Degrees(51.5+float64(i)*0.001, -0.1), now) {
			t.Fatalf("append %d dropped", i)
		}
	}
	if n := waitFlush(t, store); n != 3 {
		t.Errorf("expected batch of 3, got %d", n)
	}
}

func TestRecorder_FlushesOnInterval(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store, 16, 100, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Append("s1", types.Degrees(51.5, -0.1), time.Now())
	if n := waitFlush(t, store); n != 1 {
		t.Errorf("expected 1 point, got %d", n)
	}
}

func TestRecorder_DeleteAfterQueuedPoints(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store, 16, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Append("s1", types.Degrees(51.5, -0.1), time.Now())
	r.Append("s2", types.Degrees(48.8, 2.3), time.Now())
	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFlush(t, store)
	if got := store.count(); got != 1 {
		t.Errorf("expected only s2's point to remain, got %d", got)
	}
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(store, 16, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Append("s1", types.Degrees(51.5, -0.1), time.Now())
	r.Append("s1", types.Degrees(51.6, -0.1), time.Now())
	cancel()
	<-done

	if got := store.count(); got != 2 {
		t.Errorf("expected 2 points after drain, got %d", got)
	}
	if r.Append("s1", types.Degrees(51.7, -0.1), time.Now()) {
		t.Error("append after stop should be refused")
	}
	if err := r.Delete(context.Background(), "s1"); err != ErrRecorderStopped {
		t.Errorf("expected ErrRecorderStopped, got %v", err)
	}
}

func TestRecorder_AppendNeverBlocks(t *testing.T) {
	r := NewRecorder(newMemStore(), 1, 100, time.Hour) // not running
	if !r.Append("s1", types.Degrees(1, 1), time.Now()) {
		t.Fatal("first append should fit")
	}
	if r.Append("s1", types.Degrees(1, 1), time.Now()) {
		t.Error("full buffer should drop")
	}
}

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("COMPASS_DB_DSN")
	if dsn == "" {
		t.Skip("COMPASS_DB_DSN not set; skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := infra.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := NewStore(pool)
	sid := fmt.Sprintf("track_test_%d", time.Now().UnixNano())
	now := time.Now().UTC().Truncate(time.Millisecond)
	err = store.AppendBatch(ctx, []TrackPoint{
		{SessionID: sid, Position: types.Degrees(51.5, -0.1), RecordedAt: now},
		{SessionID: sid, Position: types.Degrees(51.501, -0.1), RecordedAt: now.Add(time.Second)},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	pts, err := store.Points(ctx, sid)
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if len(pts) != 2 || pts[0].Position.Lat() != 51.5 {
		t.Fatalf("unexpected points %+v", pts)
	}
	if err := store.DeleteSession(ctx, sid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if pts, _ := store.Points(ctx, sid); len(pts) != 0 {
		t.Errorf("expected no points after delete, got %d", len(pts))
	}
}
