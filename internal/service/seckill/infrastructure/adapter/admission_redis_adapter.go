// internal/service/seckill/infrastructure/adapter/admission_redis_adapter.go
package adapter

import (
	"context"
	"fmt"

	"flashsale/internal/pkg/redis"
	"flashsale/internal/service/seckill/domain/port"
)

const (
	admitScriptName    = "seckill_admit"
	rollbackScriptName = "seckill_rollback"
)

// AdmissionRedisAdapter 是 port.AdmissionService 接口的 Redis 实现。
// 准入和回滚都是单个 Lua 脚本：Redis 的单线程求值保证了
// 库存检查、一人一单检查与写入之间不存在任何并发窗口。
type AdmissionRedisAdapter struct {
	redisClient *redis.Client
}

// NewAdmissionRedisAdapter 创建准入适配器，并在创建时加载所需的 Lua 脚本。
func NewAdmissionRedisAdapter(redisClient *redis.Client) (*AdmissionRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(admitScriptName, admitScript); err != nil {
		return nil, fmt.Errorf("failed to load critical admission script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(rollbackScriptName, rollbackScript); err != nil {
		return nil, fmt.Errorf("failed to load rollback script: %w", err)
	}
	return &AdmissionRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:{%d}", voucherID)
}

func ordersKey(voucherID int64) string {
	return fmt.Sprintf("seckill:orders:{%d}", voucherID)
}

// Admit 实现单步原子准入。
func (a *AdmissionRedisAdapter) Admit(ctx context.Context, voucherID, userID int64) (port.AdmissionResult, error) {
	keys := []string{stockKey(voucherID), ordersKey(voucherID)}

	result, err := a.redisClient.RunScript(ctx, admitScriptName, keys, userID)
	if err != nil {
		return 0, fmt.Errorf("admission adapter failed to run script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch code {
	case 0:
		return port.AdmissionAdmitted, nil
	case 1:
		return port.AdmissionSoldOut, nil
	case 2:
		return port.AdmissionAlreadyOrdered, nil
	default:
		return 0, fmt.Errorf("unknown result code from admission script: %d", code)
	}
}

// Revoke 实现准入的补偿逻辑：只有占位标记确实被移除时才恢复库存，天然幂等。
func (a *AdmissionRedisAdapter) Revoke(ctx context.Context, voucherID, userID int64) error {
	keys := []string{stockKey(voucherID), ordersKey(voucherID)}
	if _, err := a.redisClient.RunScript(ctx, rollbackScriptName, keys, userID); err != nil {
		return fmt.Errorf("admission adapter failed to run rollback script: %w", err)
	}
	return nil
}

// Prepare 初始化秒杀优惠券的库存和占位集合。
func (a *AdmissionRedisAdapter) Prepare(ctx context.Context, voucherID int64, stock int) error {
	// 使用 pipeline 提高效率
	pipe := a.redisClient.GetClient().Pipeline()
	pipe.Set(ctx, stockKey(voucherID), stock, 0)
	pipe.Del(ctx, ordersKey(voucherID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare seckill voucher: %w", err)
	}
	return nil
}

// 返回约定: 0 准入成功, 1 已售罄, 2 重复下单。
// 库存检查在先：库存与占位标记同时不满足时，对外表现为已售罄。
var admitScript = `
-- KEYS[1]: 库存 Key, 例如: seckill:stock:{10}
-- KEYS[2]: 已下单用户集合 Key, 例如: seckill:orders:{10}
-- ARGV[1]: 当前尝试下单的用户 ID

-- 1. 检查库存
local stock = tonumber(redis.call('get', KEYS[1]))
if (stock == nil or stock <= 0) then
    return 1 -- 已售罄
end

-- 2. 检查用户是否已下过单
if (redis.call('sismember', KEYS[2], ARGV[1]) == 1) then
    return 2 -- 重复下单
end

-- 3. 扣库存并记录占位标记
redis.call('incrby', KEYS[1], -1)
redis.call('sadd', KEYS[2], ARGV[1])
return 0
`

// 反向镜像准入脚本: 只有成功移除占位标记才恢复库存。
var rollbackScript = `
-- KEYS[1]: 库存 Key
-- KEYS[2]: 已下单用户集合 Key
-- ARGV[1]: 被补偿的用户 ID

if (redis.call('srem', KEYS[2], ARGV[1]) == 1) then
    redis.call('incrby', KEYS[1], 1)
end
return 0
`
