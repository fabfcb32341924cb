// README: In-memory map object store for single-node deployments without Redis.
package mapobject

import (
	"context"
	"sync"

	"compass/internal/engine"
	"compass/internal/geo"
	"compass/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]map[int64]engine.MapObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[int64]engine.MapObject)}
}

func (s *MemoryStore) Insert(_ context.Context, sessionID string, obj engine.MapObject) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	obj.ID = s.seq
	objs := s.sessions[sessionID]
	if objs == nil {
		objs = make(map[int64]engine.MapObject)
		s.sessions[sessionID] = objs
	}
	objs[obj.ID] = obj
	return obj.ID, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, layer string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.sessions[sessionID][id]
	if !ok || obj.Layer != layer {
		return ErrNotFound
	}
	delete(s.sessions[sessionID], id)
	return nil
}

func (s *MemoryStore) FindNear(_ context.Context, sessionID string, p types.Point, radiusM float64, layers ...string) ([]engine.MapObject, error) {
	if len(layers) == 0 {
		layers = Layers
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []engine.MapObject
	for _, obj := range s.sessions[sessionID] {
		if !contains(layers, obj.Layer) || geo.DistanceM(p, obj.Point) > radiusM {
			continue
		}
		out = append(out, obj)
	}
	geo.SortByDistance(out, func(o engine.MapObject) float64 { return geo.DistanceM(p, o.Point) })
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
