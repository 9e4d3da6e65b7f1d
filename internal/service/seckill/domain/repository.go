// internal/service/seckill/domain/repository.go
package domain

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateOrder 表示该用户已持有此优惠券的订单（数据库唯一约束或前置计数命中）。
	ErrDuplicateOrder = errors.New("user already holds an order for this voucher")

	// ErrStockShortage 表示条件扣减未命中任何行（库存耗尽或乐观并发落败）。
	ErrStockShortage = errors.New("voucher stock exhausted")
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，由基础设施层实现。
type OrderRepository interface {
	// CreateOrder 在一个事务里完成：一人一单复核、条件库存扣减（stock > 0）、订单写入。
	// 冲突分别以 ErrDuplicateOrder / ErrStockShortage 报告。
	CreateOrder(ctx context.Context, order *VoucherOrder) error

	// SaveFailedOrder 将重试耗尽的订单记录到审计表。
	SaveFailedOrder(ctx context.Context, order *VoucherOrder, reason string) error
}

// VoucherRepository 定义了优惠券库存记录的持久化接口。
type VoucherRepository interface {
	FindByID(ctx context.Context, voucherID int64) (*SeckillVoucher, error)
	Save(ctx context.Context, voucher *SeckillVoucher) error
}
