package xredis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只有持有者才能续期/释放
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLockMaster 多实例部署时保证只有一个写节点
type RedisLockMaster struct {
	rdb *redis.Client
	id  string // 当前节点的唯一ID
}

func NewRedisLockMaster(rdb *redis.Client) *RedisLockMaster {
	return &RedisLockMaster{
		rdb: rdb,
		id:  fmt.Sprintf("%s-%d", uuid.NewString(), time.Now().UnixNano()),
	}
}

func (r *RedisLockMaster) ID() string { return r.id }

// TryAcquireMaster SETNX 抢锁，已经是自己的锁则续期
func (r *RedisLockMaster) TryAcquireMaster(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, key, r.id, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	n, err := renewScript.Run(ctx, r.rdb, []string{key}, r.id, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release 主动释放，别人的锁不会被删
func (r *RedisLockMaster) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, r.rdb, []string{key}, r.id).Err()
}

// KeepMaster 阻塞直到拿到锁，之后按 ttl/3 续期；失去锁时调用 onLost 并返回
func (r *RedisLockMaster) KeepMaster(ctx context.Context, key string, ttl time.Duration, onLost func(error)) error {
	tick := ttl / 3
	if tick <= 0 {
		tick = time.Second
	}
	t := time.NewTicker(tick)
	defer t.Stop()

	// 先等到成为 master
	for {
		ok, err := r.TryAcquireMaster(ctx, key, ttl)
		if err == nil && ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = r.Release(context.Background(), key)
				return
			case <-t.C:
				ok, err := r.TryAcquireMaster(ctx, key, ttl)
				if err != nil || !ok {
					if err == nil {
						err = fmt.Errorf("master lock %s lost", key)
					}
					if onLost != nil {
						onLost(err)
					}
					return
				}
			}
		}
	}()
	return nil
}
