// internal/service/seckill/infrastructure/adapter/rate_limiter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/redis"
)

const (
	acquireScriptName   = "ratelimit_acquire"
	replenishScriptName = "ratelimit_replenish"

	bucketKey = "seckill:token_bucket"
)

// TokenBucketLimiter 是外置于请求进程的令牌桶限流器。
// 桶状态放在一个 Redis hash 里；取令牌和补令牌都是单个 Lua 脚本，
// 二者不会因为 read-modify-write 分步执行而互相丢失更新。
type TokenBucketLimiter struct {
	redisClient *redis.Client
}

func NewTokenBucketLimiter(redisClient *redis.Client) (*TokenBucketLimiter, error) {
	if err := redisClient.LoadScriptFromContent(acquireScriptName, acquireScript); err != nil {
		return nil, fmt.Errorf("failed to load rate limiter acquire script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(replenishScriptName, replenishScript); err != nil {
		return nil, fmt.Errorf("failed to load rate limiter replenish script: %w", err)
	}
	return &TokenBucketLimiter{redisClient: redisClient}, nil
}

// Configure 重置令牌桶参数，桶初始为满。
func (l *TokenBucketLimiter) Configure(ctx context.Context, maxTokens, tokensPerSecond int) error {
	fields := map[string]interface{}{
		"current_tokens":    maxTokens,
		"max_tokens":        maxTokens,
		"tokens_per_second": tokensPerSecond,
		"last_replenish":    time.Now().UnixMilli(),
	}
	if err := l.redisClient.GetClient().HSet(ctx, bucketKey, fields).Err(); err != nil {
		return fmt.Errorf("failed to configure token bucket: %w", err)
	}
	return nil
}

// TryAcquire 原子地取走一个令牌；桶空时拒绝。
func (l *TokenBucketLimiter) TryAcquire(ctx context.Context) (bool, error) {
	result, err := l.redisClient.RunScript(ctx, acquireScriptName, []string{bucketKey})
	if err != nil {
		return false, fmt.Errorf("rate limiter failed to run acquire script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	return code == 1, nil
}

// StartReplenisher 启动周期性的补令牌任务，ctx 取消后退出。
func (l *TokenBucketLimiter) StartReplenisher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := l.replenish(ctx); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("Token bucket replenish failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *TokenBucketLimiter) replenish(ctx context.Context) error {
	_, err := l.redisClient.RunScript(ctx, replenishScriptName, []string{bucketKey}, time.Now().UnixMilli())
	return err
}

var acquireScript = `
-- KEYS[1]: 令牌桶 hash
local tokens = tonumber(redis.call('hget', KEYS[1], 'current_tokens'))
if (tokens == nil or tokens <= 0) then
    return 0 -- 没有令牌
end
redis.call('hincrby', KEYS[1], 'current_tokens', -1)
return 1
`

// current += min(rate * elapsedSeconds, max - current)，不超过桶容量。
var replenishScript = `
-- KEYS[1]: 令牌桶 hash
-- ARGV[1]: 当前毫秒时间戳
local now = tonumber(ARGV[1])
local last = tonumber(redis.call('hget', KEYS[1], 'last_replenish'))
local rate = tonumber(redis.call('hget', KEYS[1], 'tokens_per_second'))
local max = tonumber(redis.call('hget', KEYS[1], 'max_tokens'))
local cur = tonumber(redis.call('hget', KEYS[1], 'current_tokens'))
if (last == nil or rate == nil or max == nil or cur == nil) then
    return 0 -- 桶未初始化
end

local elapsed = math.floor((now - last) / 1000)
if (elapsed <= 0) then
    return cur
end

local added = math.min(rate * elapsed, max - cur)
if (added > 0) then
    redis.call('hincrby', KEYS[1], 'current_tokens', added)
end
-- 只推进整秒部分，不到一秒的余量留到下一轮累计，长期速率才不会低于配置值
redis.call('hset', KEYS[1], 'last_replenish', last + elapsed * 1000)
return cur + added
`
