package repository

import (
	"context"

	"shopcore/internal/domain/model"
)

type CouponRepository interface {
	// codeは正規化済みで渡す
	FindByCode(ctx context.Context, code string) (model.Coupon, error)
	Create(ctx context.Context, c model.Coupon) (model.Coupon, error)
	List(ctx context.Context) ([]model.Coupon, error)

	// used_count < usage_limit（またはlimitなし）のときだけ+1
	IncrementUsage(ctx context.Context, couponID int64) (bool, error)

	// キャンセルされていない注文での利用回数
	CountActiveRedemptions(ctx context.Context, couponID int64, userID int64) (int64, error)
	CreateRedemption(ctx context.Context, r model.CouponRedemption) error
}
