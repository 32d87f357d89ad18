package readmodel

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
)

// Cache 轮次快照缓存，number=0 表示最新一轮
type Cache interface {
	GetRound(ctx context.Context, number uint64) (*Round, bool, error)
	SetRound(ctx context.Context, number uint64, row *Round, ttl time.Duration) error
	DelRound(ctx context.Context, number uint64) error
}

type redisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(c *redis.Client, prefix string) Cache {
	if prefix == "" {
		prefix = "acdm"
	}
	return &redisCache{client: c, prefix: prefix}
}

func (r *redisCache) GetRound(ctx context.Context, number uint64) (*Round, bool, error) {
	key := r.getKey(number)

	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	row := &Round{}
	if err := json.Unmarshal(b, row); err != nil {
		// 缓存脏了就删掉，避免持续命中错误
		_ = r.client.Del(ctx, key).Err()
		return nil, false, err
	}
	return row, true, nil
}

func (r *redisCache) SetRound(ctx context.Context, number uint64, row *Round, ttl time.Duration) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(number), b, withJitter(ttl, 300*time.Millisecond)).Err()
}

func (r *redisCache) DelRound(ctx context.Context, number uint64) error {
	return r.client.Del(ctx, r.getKey(number)).Err()
}

func (r *redisCache) getKey(number uint64) string {
	if number == 0 {
		return fmt.Sprintf("%s:round:latest", r.prefix)
	}
	return fmt.Sprintf("%s:round:%d", r.prefix, number)
}

func withJitter(ttl time.Duration, jitter time.Duration) time.Duration {
	if ttl <= 0 || jitter <= 0 {
		return ttl
	}
	// [0, jitter) 的随机
	j := time.Duration(rand.Int63n(int64(jitter)))
	return ttl + j
}

// NopCache 没配 redis 时用，永远不命中
type NopCache struct{}

func (NopCache) GetRound(context.Context, uint64) (*Round, bool, error) { return nil, false, nil }

func (NopCache) SetRound(context.Context, uint64, *Round, time.Duration) error { return nil }

func (NopCache) DelRound(context.Context, uint64) error { return nil }
