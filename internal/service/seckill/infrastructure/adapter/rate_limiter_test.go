// internal/service/seckill/infrastructure/adapter/rate_limiter_test.go
package adapter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/pkg/redis"
)

func newTestLimiter(t *testing.T) (*TokenBucketLimiter, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)

	client, err := redis.NewClient(srv.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	limiter, err := NewTokenBucketLimiter(client)
	require.NoError(t, err)
	return limiter, client
}

func TestTokenBucketLimiter_AcquireDrainsBucket(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.Configure(ctx, 2, 1))

	for i := 0; i < 2; i++ {
		ok, err := limiter.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "空桶应当拒绝")
}

func TestTokenBucketLimiter_AcquireOnUninitializedBucketRejects(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	ok, err := limiter.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// 补令牌只推进整秒，不足一秒的余量必须留在 last_replenish 里累计，
// 否则每轮补给都会丢掉余数，长期速率低于配置值。
func TestTokenBucketLimiter_ReplenishCarriesSubSecondRemainder(t *testing.T) {
	_, client := newTestLimiter(t)
	ctx := context.Background()

	rdb := client.GetClient()
	require.NoError(t, rdb.HSet(ctx, bucketKey, map[string]interface{}{
		"current_tokens":    0,
		"max_tokens":        10,
		"tokens_per_second": 1,
		"last_replenish":    0,
	}).Err())

	// 1.5 秒后补给：只发 1 个令牌，余下的 500ms 留给下一轮
	result, err := client.RunScript(ctx, replenishScriptName, []string{bucketKey}, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result)
	assert.Equal(t, "1000", rdb.HGet(ctx, bucketKey, "last_replenish").Val())

	// 再过 1.5 秒：累计 elapsed 是 2 秒整，共补 3 个令牌
	result, err = client.RunScript(ctx, replenishScriptName, []string{bucketKey}, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result)
	assert.Equal(t, "3", rdb.HGet(ctx, bucketKey, "current_tokens").Val())
	assert.Equal(t, "3000", rdb.HGet(ctx, bucketKey, "last_replenish").Val())
}

func TestTokenBucketLimiter_ReplenishNeverExceedsCapacity(t *testing.T) {
	_, client := newTestLimiter(t)
	ctx := context.Background()

	rdb := client.GetClient()
	require.NoError(t, rdb.HSet(ctx, bucketKey, map[string]interface{}{
		"current_tokens":    8,
		"max_tokens":        10,
		"tokens_per_second": 5,
		"last_replenish":    0,
	}).Err())

	result, err := client.RunScript(ctx, replenishScriptName, []string{bucketKey}, 60_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result)
	assert.Equal(t, "10", rdb.HGet(ctx, bucketKey, "current_tokens").Val())
}
