// internal/service/seckill/domain/event.go
package domain

import "time"

// OrderPlacementRequested 是准入通过后投入履约队列的消息体。
// 订单的全部信息在准入时即已生成，消费方只负责持久化。
type OrderPlacementRequested struct {
	OrderID   int64     `json:"orderId"`
	UserID    int64     `json:"userId"`
	VoucherID int64     `json:"voucherId"`
	PlacedAt  time.Time `json:"placedAt"`
}

// ToOrder 从队列消息还原订单实体
func (e *OrderPlacementRequested) ToOrder() (*VoucherOrder, error) {
	order, err := NewVoucherOrder(e.OrderID, e.UserID, e.VoucherID)
	if err != nil {
		return nil, err
	}
	order.CreatedAt = e.PlacedAt
	return order, nil
}
