// internal/service/seckill/infrastructure/adapter/redis_lock.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flashsale/internal/pkg/redis"
	"flashsale/internal/service/seckill/domain/port"
)

const (
	unlockScriptName = "lock_unlock"
	lockKeyPrefix    = "lock:"
)

// RedisLockFactory 创建基于租约的 Redis 分布式锁。
// ownerPrefix 保证多个进程实例之间的持有者令牌不会重复。
type RedisLockFactory struct {
	redisClient *redis.Client
	ownerPrefix string
}

func NewRedisLockFactory(redisClient *redis.Client) (*RedisLockFactory, error) {
	if err := redisClient.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, fmt.Errorf("failed to load unlock script: %w", err)
	}
	return &RedisLockFactory{
		redisClient: redisClient,
		ownerPrefix: uuid.NewString() + "-",
	}, nil
}

func (f *RedisLockFactory) NewLock(name string) (port.Lock, error) {
	return &simpleRedisLock{
		redisClient: f.redisClient,
		key:         lockKeyPrefix + name,
		token:       f.ownerPrefix + uuid.NewString(),
	}, nil
}

// simpleRedisLock 通过 SET NX EX 获取；未释放的锁靠 TTL 自愈，
// 持有者崩溃不会造成永久死锁。
type simpleRedisLock struct {
	redisClient *redis.Client
	key         string
	token       string
}

func (l *simpleRedisLock) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.redisClient.GetClient().SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Unlock 以 compare-then-delete 的方式释放：
// 只有记录的持有者仍是自己时才删除，防止 TTL 过期易主后误删他人的锁。
func (l *simpleRedisLock) Unlock(ctx context.Context) error {
	result, err := l.redisClient.RunScript(ctx, unlockScriptName, []string{l.key}, l.token)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if deleted, ok := result.(int64); ok && deleted == 0 {
		return fmt.Errorf("lock %s is no longer held by this owner", l.key)
	}
	return nil
}

var unlockScript = `
-- KEYS[1]: 锁的 Key
-- ARGV[1]: 持有者令牌
if (redis.call('get', KEYS[1]) == ARGV[1]) then
    return redis.call('del', KEYS[1])
end
return 0
`
