package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "trendingarchive:collector:"

// ResultCache 缓存各数据源最近一次成功抓取的结果
type ResultCache interface {
	Load(ctx context.Context, source string) (Result, bool)
	Store(ctx context.Context, source string, r Result)
}

// RedisCache 基于 Redis 的结果缓存，TTL 过期后自然失效
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context, source string) (Result, bool) {
	if c == nil || c.client == nil {
		return Result{}, false
	}
	bs, err := c.client.Get(ctx, cacheKeyPrefix+source).Bytes()
	if err != nil {
		return Result{}, false
	}
	var r Result
	// UseNumber 保证热度等数值原样往返，不被转成 float64
	dec := json.NewDecoder(bytes.NewReader(bs))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return Result{}, false
	}
	return r, true
}

func (c *RedisCache) Store(ctx context.Context, source string, r Result) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	bs, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKeyPrefix+source, bs, c.ttl).Err()
}
