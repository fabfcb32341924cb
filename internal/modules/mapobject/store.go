// README: Map object store backed by Redis GEO sets and a per-session hash.
package mapobject

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"compass/internal/engine"
	"compass/internal/geo"
	"compass/internal/types"
)

const (
	seqKey       = "mapobj:seq"
	layerKeyFmt  = "mapobj:%s:layer:%s"
	objectKeyFmt = "mapobj:%s:objects"
	// Sessions are short-lived; abandoned objects expire.
	keyTTL = 24 * time.Hour
)

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redis *redis.Client) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) Insert(ctx context.Context, sessionID string, obj engine.MapObject) (int64, error) {
	id, err := s.redis.Incr(ctx, seqKey).Result()
	if err != nil {
		return 0, err
	}
	obj.ID = id
	body, err := json.Marshal(obj)
	if err != nil {
		return 0, err
	}

	field := strconv.FormatInt(id, 10)
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, layerKey(sessionID, obj.Layer), &redis.GeoLocation{
		Name:      field,
		Longitude: obj.Point.Lng(),
		Latitude:  obj.Point.Lat(),
	})
	pipe.HSet(ctx, objectKey(sessionID), field, body)
	pipe.Expire(ctx, layerKey(sessionID, obj.Layer), keyTTL)
	pipe.Expire(ctx, objectKey(sessionID), keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, layer string, id int64) error {
	field := strconv.FormatInt(id, 10)
	raw, err := s.redis.HGet(ctx, objectKey(sessionID), field).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var obj engine.MapObject
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return err
	}
	if obj.Layer != layer {
		return ErrNotFound
	}

	pipe := s.redis.TxPipeline()
	pipe.ZRem(ctx, layerKey(sessionID, layer), field)
	pipe.HDel(ctx, objectKey(sessionID), field)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) FindNear(ctx context.Context, sessionID string, p types.Point, radiusM float64, layers ...string) ([]engine.MapObject, error) {
	if len(layers) == 0 {
		layers = Layers
	}
	var fields []string
	for _, layer := range layers {
		ids, err := s.redis.GeoSearch(ctx, layerKey(sessionID, layer), &redis.GeoSearchQuery{
			Longitude:  p.Lng(),
			Latitude:   p.Lat(),
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
		}).Result()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ids...)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	vals, err := s.redis.HMGet(ctx, objectKey(sessionID), fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]engine.MapObject, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var obj engine.MapObject
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	geo.SortByDistance(out, func(o engine.MapObject) float64 { return geo.DistanceM(p, o.Point) })
	return out, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	keys := []string{objectKey(sessionID)}
	for _, layer := range Layers {
		keys = append(keys, layerKey(sessionID, layer))
	}
	return s.redis.Del(ctx, keys...).Err()
}

func layerKey(sessionID, layer string) string {
	return fmt.Sprintf(layerKeyFmt, sessionID, layer)
}

func objectKey(sessionID string) string {
	return fmt.Sprintf(objectKeyFmt, sessionID)
}
