// internal/service/seckill/domain/voucher.go
package domain

import (
	"errors"
	"time"
)

var (
	ErrVoucherNotFound = errors.New("seckill voucher not found")
	ErrNotStarted      = errors.New("seckill has not started yet")
	ErrEnded           = errors.New("seckill has already ended")
)

// SeckillVoucher 是限量优惠券的库存记录。
// 库存在补偿之外单调递减，且扣减永远和一人一单检查在同一个原子操作里完成。
type SeckillVoucher struct {
	VoucherID int64
	Stock     int
	BeginTime time.Time
	EndTime   time.Time

	// Rule 是可选的 CEL 资格表达式，为空时只做活动窗口校验。
	Rule string
}

// CheckActive 校验活动窗口
func (v *SeckillVoucher) CheckActive(now time.Time) error {
	if now.Before(v.BeginTime) {
		return ErrNotStarted
	}
	if now.After(v.EndTime) {
		return ErrEnded
	}
	return nil
}

// EligibilityFact 是资格规则求值的输入事实
type EligibilityFact struct {
	UserID int64     `json:"user_id"`
	Stock  int       `json:"stock"`
	Now    time.Time `json:"now"`
	Begin  time.Time `json:"begin"`
	End    time.Time `json:"end"`
}
