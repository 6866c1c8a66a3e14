package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// codeは大文字に正規化して保存する
type Coupon struct {
	ID                int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string           `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Description       string           `gorm:"type:varchar(255)" json:"description"`
	DiscountType      DiscountType     `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue     decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MinOrderAmount    decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:numeric(12,2)" json:"max_discount_amount"`
	UsageLimit        *int64           `json:"usage_limit"`
	UsedCount         int64            `gorm:"not null;default:0" json:"used_count"`
	PerUserLimit      int64            `gorm:"not null;default:1" json:"per_user_limit"`
	IsActive          bool             `gorm:"not null;default:true" json:"is_active"`
	StartsAt          *time.Time       `json:"starts_at"`
	ExpiresAt         *time.Time       `json:"expires_at"`
	CreatedAt         time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 1回の利用記録（per_user_limitの判定に使う）
type CouponRedemption struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID  int64     `gorm:"not null;index:ix_coupon_redemptions_coupon_user" json:"coupon_id"`
	UserID    int64     `gorm:"not null;index:ix_coupon_redemptions_coupon_user" json:"user_id"`
	OrderID   int64     `gorm:"not null;uniqueIndex" json:"order_id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
