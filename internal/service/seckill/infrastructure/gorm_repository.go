// internal/service/seckill/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"flashsale/internal/service/seckill/domain"
)

const mysqlErrDuplicateEntry = 1062

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现，
// 负责订单的最终落库：幂等校验、条件扣减库存和订单插入在同一事务内完成。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// CreateOrder 在单个事务中持久化订单。
// 失败语义：
//   - 同一用户对同一张券已有订单 -> domain.ErrDuplicateOrder
//   - 库存已被扣完 -> domain.ErrStockShortage
func (r *GormOrderRepository) CreateOrder(ctx context.Context, order *domain.VoucherOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 一人一单复查。唯一索引兜底，这里提前返回可读的业务错误。
		var count int64
		if err := tx.Model(&VoucherOrderModel{}).
			Where("user_id = ? AND voucher_id = ?", order.UserID, order.VoucherID).
			Count(&count).Error; err != nil {
			return pkgerrors.Wrap(err, "查询历史订单失败")
		}
		if count > 0 {
			return domain.ErrDuplicateOrder
		}

		// 条件扣减：stock > 0 保证永不超卖，RowsAffected 为 0 即库存不足。
		res := tx.Model(&SeckillVoucherModel{}).
			Where("voucher_id = ? AND stock > 0", order.VoucherID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return pkgerrors.Wrap(res.Error, "扣减库存失败")
		}
		if res.RowsAffected == 0 {
			return domain.ErrStockShortage
		}

		if err := tx.Create(fromDomainOrder(order)).Error; err != nil {
			var mysqlErr *mysqldriver.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
				return domain.ErrDuplicateOrder
			}
			return pkgerrors.Wrap(err, "插入订单失败")
		}
		return nil
	})
}

// SaveFailedOrder 登记死信订单，主键冲突视为已登记过。
func (r *GormOrderRepository) SaveFailedOrder(ctx context.Context, order *domain.VoucherOrder, reason string) error {
	record := &FailedVoucherOrderModel{
		ID:        order.ID,
		UserID:    order.UserID,
		VoucherID: order.VoucherID,
		Reason:    reason,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return nil
		}
		return pkgerrors.Wrap(err, "登记失败订单失败")
	}
	return nil
}

// GormVoucherRepository 是 domain.VoucherRepository 的 GORM 实现。
type GormVoucherRepository struct {
	db *gorm.DB
}

func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

func (r *GormVoucherRepository) FindByID(ctx context.Context, voucherID int64) (*domain.SeckillVoucher, error) {
	var model SeckillVoucherModel
	err := r.db.WithContext(ctx).Where("voucher_id = ?", voucherID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, pkgerrors.Wrap(err, "查询秒杀券失败")
	}
	return toDomainVoucher(&model), nil
}

// Save 插入或整体覆盖一张秒杀券。
func (r *GormVoucherRepository) Save(ctx context.Context, voucher *domain.SeckillVoucher) error {
	model := fromDomainVoucher(voucher)
	err := r.db.WithContext(ctx).Save(model).Error
	return pkgerrors.Wrap(err, "保存秒杀券失败")
}
