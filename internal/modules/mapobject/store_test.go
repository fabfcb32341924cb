package mapobject

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"compass/internal/engine"
	"compass/internal/types"
)

// exercise runs the same behaviour checks against any Store.
func exercise(t *testing.T, s Store, sid string) {
	ctx := context.Background()
	here := types.Degrees(51.5, -0.1)

	pinID, err := s.Insert(ctx, sid, engine.MapObject{Layer: LayerPushpin, Name: "1 High Street", Point: here})
	if err != nil {
		t.Fatalf("insert pin: %v", err)
	}
	foundID, err := s.Insert(ctx, sid, engine.MapObject{Layer: LayerFound, Name: "Cafe", Point: types.Degrees(51.5001, -0.1), RadiusM: 20})
	if err != nil {
		t.Fatalf("insert found: %v", err)
	}
	if _, err := s.Insert(ctx, sid, engine.MapObject{Layer: LayerPushpin, Name: "far", Point: types.Degrees(52, 0)}); err != nil {
		t.Fatalf("insert far: %v", err)
	}
	if pinID == foundID {
		t.Fatal("ids must be unique")
	}

	near, err := s.FindNear(ctx, sid, here, 25)
	if err != nil {
		t.Fatalf("find near: %v", err)
	}
	if len(near) != 2 || near[0].ID != pinID || near[1].ID != foundID {
		t.Fatalf("expected pin then found item, got %+v", near)
	}
	if near[1].RadiusM != 20 {
		t.Errorf("radius lost: %+v", near[1])
	}

	pins, _ := s.FindNear(ctx, sid, here, 25, LayerPushpin)
	if len(pins) != 1 || pins[0].Layer != LayerPushpin {
		t.Fatalf("layer filter failed: %+v", pins)
	}

	if err := s.Delete(ctx, sid, LayerPushpin, foundID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting from the wrong layer should fail, got %v", err)
	}
	if err := s.Delete(ctx, sid, LayerPushpin, pinID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, sid, LayerPushpin, pinID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}

	if err := s.DeleteSession(ctx, sid); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if left, _ := s.FindNear(ctx, sid, here, 1e6); len(left) != 0 {
		t.Errorf("session objects survived: %+v", left)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore(), "s1")
}

func TestMemoryStore_SessionsIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := types.Degrees(1, 1)
	_, _ = s.Insert(ctx, "a", engine.MapObject{Layer: LayerPushpin, Point: p})
	if got, _ := s.FindNear(ctx, "b", p, 100); len(got) != 0 {
		t.Errorf("session b sees session a's objects: %+v", got)
	}
}

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("COMPASS_REDIS_ADDR")
	if addr == "" {
		t.Skip("COMPASS_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	exercise(t, NewRedisStore(rdb), fmt.Sprintf("mapobj_test_%d", time.Now().UnixNano()))
}
