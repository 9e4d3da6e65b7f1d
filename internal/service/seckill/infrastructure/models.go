// internal/service/seckill/infrastructure/models.go
package infrastructure

import "time"

// SeckillVoucherModel 对应数据库中的 tb_seckill_voucher 表。
type SeckillVoucherModel struct {
	VoucherID int64 `gorm:"primaryKey;autoIncrement:false"`
	Stock     int64
	Rule      string `gorm:"type:text"`
	BeginTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SeckillVoucherModel) TableName() string {
	return "tb_seckill_voucher"
}

// VoucherOrderModel 对应数据库中的 tb_voucher_order 表。
// (user_id, voucher_id) 上的唯一索引是一人一单的最后一道防线。
type VoucherOrderModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64 `gorm:"uniqueIndex:uk_user_voucher"`
	VoucherID int64 `gorm:"uniqueIndex:uk_user_voucher"`
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (VoucherOrderModel) TableName() string {
	return "tb_voucher_order"
}

// FailedVoucherOrderModel 记录最终落入死信的订单，供人工核查。
type FailedVoucherOrderModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64
	VoucherID int64
	Reason    string `gorm:"type:text"`
	CreatedAt time.Time
}

func (FailedVoucherOrderModel) TableName() string {
	return "tb_failed_voucher_order"
}
