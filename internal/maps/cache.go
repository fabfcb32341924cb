package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"

	"compass/internal/engine"
)

const (
	// geohashPrecision 8 is a cell of roughly 38m x 19m; endpoints closer
	// than that share cached routes.
	geohashPrecision = 8

	// cacheWriteTimeout is the deadline for an async cache write.
	cacheWriteTimeout = 2 * time.Second
)

// RouteCache stores computed routes by request key.
type RouteCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*engine.Route, error)
	Set(ctx context.Context, key string, r *engine.Route) error
}

// RedisRouteCache is a RouteCache backed by Redis strings with a TTL.
type RedisRouteCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration) *RedisRouteCache {
	return &RedisRouteCache{redis: client, ttl: ttl}
}

func (c *RedisRouteCache) Get(ctx context.Context, key string) (*engine.Route, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("route cache get: %w", err)
	}
	var r engine.Route
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("route cache decode: %w", err)
	}
	return &r, nil
}

func (c *RedisRouteCache) Set(ctx context.Context, key string, r *engine.Route) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("route cache encode: %w", err)
	}
	return c.redis.Set(ctx, key, b, c.ttl).Err()
}

// cacheKey groups requests by profile, units and the geohash cells of both
// endpoints.
func cacheKey(req engine.RouteRequest) string {
	units := "imperial"
	if req.MetricUnits {
		units = "metric"
	}
	return fmt.Sprintf("route:%s:%s:%s:%s",
		req.Profile,
		units,
		geohash.EncodeWithPrecision(req.Start.Lat(), req.Start.Lng(), geohashPrecision),
		geohash.EncodeWithPrecision(req.End.Lat(), req.End.Lng(), geohashPrecision),
	)
}

// cached wraps compute with a cache-aside layer. Cache failures fall through
// to compute; successful routes are written back without blocking the caller.
func cached(cache RouteCache, compute computeFunc) computeFunc {
	return func(ctx context.Context, req engine.RouteRequest) (engine.ResultCode, *engine.Route) {
		key := cacheKey(req)
		if r, err := cache.Get(ctx, key); err != nil {
			log.Printf("maps: %v", err)
		} else if r != nil {
			return engine.ResultOK, r
		}

		code, route := compute(ctx, req)
		if code != engine.ResultOK || route == nil {
			return code, route
		}
		go func() {
			storeCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := cache.Set(storeCtx, key, route); err != nil {
				log.Printf("maps: route cache: async write failed (key=%s): %v", key, err)
			}
		}()
		return code, route
	}
}
