// internal/service/seckill/domain/port/admission.go
package port

import (
	"context"
	"errors"
)

var (
	ErrSoldOut        = errors.New("voucher is sold out")
	ErrAlreadyOrdered = errors.New("user has already ordered this voucher")
	ErrRateLimited    = errors.New("service overloaded")
	ErrTooFrequent    = errors.New("duplicate attempt in flight for this user")
	ErrIneligible     = errors.New("user is not eligible for this voucher")
)

// AdmissionResult 是准入检查的结果枚举
type AdmissionResult int

const (
	AdmissionAdmitted AdmissionResult = iota + 1
	AdmissionSoldOut
	AdmissionAlreadyOrdered
)

// AdmissionService 是准入控制的出站端口。
// Admit 必须是单步原子操作：库存检查、一人一单检查、库存扣减与占位标记
// 在一次不可分割的执行中完成，任意并发下不存在检查与预占之间的窗口。
type AdmissionService interface {
	// Admit 尝试为 (voucherID, userID) 预占一份库存。
	// 库存检查先于一人一单检查，两个条件同时成立时返回 SoldOut。
	Admit(ctx context.Context, voucherID, userID int64) (AdmissionResult, error)

	// Revoke 是 Admit 的补偿操作：恢复库存并移除占位标记。幂等。
	Revoke(ctx context.Context, voucherID, userID int64) error

	// Prepare 初始化（或重置）一个优惠券的库存与占位集合。
	Prepare(ctx context.Context, voucherID int64, stock int) error
}
