// internal/service/seckill/infrastructure/mapper.go
package infrastructure

import (
	"flashsale/internal/service/seckill/domain"
)

// toDomainVoucher 将数据库模型转换为领域模型。
func toDomainVoucher(model *SeckillVoucherModel) *domain.SeckillVoucher {
	if model == nil {
		return nil
	}
	return &domain.SeckillVoucher{
		VoucherID: model.VoucherID,
		Stock:     int(model.Stock),
		Rule:      model.Rule,
		BeginTime: model.BeginTime,
		EndTime:   model.EndTime,
	}
}

// fromDomainVoucher 将领域模型转换为数据库模型 (用于插入或更新)。
func fromDomainVoucher(v *domain.SeckillVoucher) *SeckillVoucherModel {
	if v == nil {
		return nil
	}
	return &SeckillVoucherModel{
		VoucherID: v.VoucherID,
		Stock:     int64(v.Stock),
		Rule:      v.Rule,
		BeginTime: v.BeginTime,
		EndTime:   v.EndTime,
	}
}

func fromDomainOrder(o *domain.VoucherOrder) *VoucherOrderModel {
	if o == nil {
		return nil
	}
	return &VoucherOrderModel{
		ID:        o.ID,
		UserID:    o.UserID,
		VoucherID: o.VoucherID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}
