// internal/service/seckill/infrastructure/mysql.go
package infrastructure

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewMysqlDB 建立 MySQL 连接并迁移秒杀相关表结构。
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接 MySQL 失败")
	}

	if err := db.AutoMigrate(
		&SeckillVoucherModel{},
		&VoucherOrderModel{},
		&FailedVoucherOrderModel{},
	); err != nil {
		return nil, errors.Wrap(err, "表结构迁移失败")
	}
	return db, nil
}
