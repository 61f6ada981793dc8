package httpcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"golang.org/x/sync/singleflight"
)

// Redis is a Cacher backed by Redis, shared by every process pointing at the same server.
type Redis struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
}

// NewRedis connects to the Redis server at addr.
func NewRedis(addr string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing rueidis client.
func NewRedisWithClient(client rueidis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "dossier:http:", ttl: ttl}
}

// TTL returns the default TTL for cache entries.
func (r *Redis) TTL() time.Duration { return r.ttl }

// GetSet returns the cached value for key, calling fetch and storing its result on a miss.
// Concurrent misses for one key in this process share a single fetch.
func (r *Redis) GetSet(
	ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration,
) ([]byte, error) {
	k := r.prefix + key
	data, err := r.client.Do(ctx, r.client.B().Get().Key(k).Build()).AsBytes()
	if err == nil {
		return data, nil
	}
	if !rueidis.IsRedisNil(err) {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	v, err, _ := r.group.Do(k, func() (any, error) {
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		exp := r.ttl
		if len(ttl) > 0 {
			exp = ttl[0]
		}
		var cmd rueidis.Completed
		if exp > 0 {
			cmd = r.client.B().Set().Key(k).Value(rueidis.BinaryString(body)).Ex(exp).Build()
		} else {
			cmd = r.client.B().Set().Key(k).Value(rueidis.BinaryString(body)).Build()
		}
		if err := r.client.Do(ctx, cmd).Error(); err != nil {
			return nil, fmt.Errorf("redis set: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	body, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value type %T", v)
	}
	return body, nil
}

// Close shuts down the client.
func (r *Redis) Close() error {
	r.client.Close()
	return nil
}
