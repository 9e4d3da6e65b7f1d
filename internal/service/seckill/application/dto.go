// internal/service/seckill/application/dto.go
package application

import "flashsale/internal/service/seckill/domain"

// PlaceOrderResponse 是下单用例的输出数据
type PlaceOrderResponse struct {
	OrderID int64
	Status  domain.OrderStatus
}

// CreateVoucherRequest 是创建/重置秒杀优惠券用例的输入数据
type CreateVoucherRequest struct {
	VoucherID int64  `json:"voucherId"`
	Stock     int    `json:"stock"`
	BeginTime string `json:"beginTime"` // RFC3339
	EndTime   string `json:"endTime"`   // RFC3339
	Rule      string `json:"rule,omitempty"`
}
