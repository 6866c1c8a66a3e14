package db

import (
	"shopcore/internal/domain/model"

	"gorm.io/gorm"
)

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.CartItem{},
		&model.Coupon{},
		&model.Order{},
		&model.OrderItem{},
		&model.CouponRedemption{},
		&model.Transaction{},
		&model.AuditLog{},
	)
}
