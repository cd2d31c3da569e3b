package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Cache 保存目录查询结果；实现必须容忍失败，失败时表现为未命中。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool) {
	return nil, false
}

func (NopCache) Set(context.Context, string, []byte, time.Duration) {}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := rc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("catalog cache get")
		}
		return nil, false
	}
	return b, true
}

func (rc *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := rc.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("catalog cache set")
	}
}

func (rc *RedisCache) Close() error { return rc.rdb.Close() }
