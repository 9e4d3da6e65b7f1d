// internal/service/seckill/domain/order.go
package domain

import (
	"errors"
	"time"
)

// OrderStatus 定义了秒杀订单的生命周期状态
type OrderStatus string

const (
	StatusPending OrderStatus = "pending" // 已通过准入，等待异步落库
	StatusSuccess OrderStatus = "success" // 已持久化
	StatusFailed  OrderStatus = "failed"  // 重试耗尽，已补偿
)

// VoucherOrder 是秒杀订单聚合的根实体。
// 订单在准入通过时即创建（此时尚未持久化），状态只由持久化路径和死信路径推进。
type VoucherOrder struct {
	ID        int64
	UserID    int64
	VoucherID int64
	Status    OrderStatus
	CreatedAt time.Time
}

// NewVoucherOrder 用于创建一个新的订单实例
func NewVoucherOrder(id, userID, voucherID int64) (*VoucherOrder, error) {
	if id == 0 || userID == 0 || voucherID == 0 {
		return nil, errors.New("cannot create voucher order with empty required fields")
	}
	return &VoucherOrder{
		ID:        id,
		UserID:    userID,
		VoucherID: voucherID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// MarkAsSuccess 将订单标记为已落库
func (o *VoucherOrder) MarkAsSuccess() {
	o.Status = StatusSuccess
}

// MarkAsFailed 将订单标记为失败
func (o *VoucherOrder) MarkAsFailed() {
	o.Status = StatusFailed
}
