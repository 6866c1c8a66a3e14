package repository

import (
	"context"

	"shopcore/internal/domain/model"

	"gorm.io/gorm"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return model.Coupon{}, translate(err)
	}
	return c, nil
}

// 重複コードは repo.ErrConflict
func (r *CouponGormRepository) Create(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return model.Coupon{}, translate(err)
	}
	return c, nil
}

func (r *CouponGormRepository) List(ctx context.Context) ([]model.Coupon, error) {
	var list []model.Coupon
	if err := r.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// 同時チェックアウトで上限を超えないよう条件付きで+1
func (r *CouponGormRepository) IncrementUsage(ctx context.Context, couponID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", 1))
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *CouponGormRepository) CountActiveRedemptions(ctx context.Context, couponID, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CouponRedemption{}).
		Joins("JOIN orders ON orders.id = coupon_redemptions.order_id").
		Where("coupon_redemptions.coupon_id = ? AND coupon_redemptions.user_id = ?", couponID, userID).
		Where("orders.status <> ?", model.OrderStatusCancelled).
		Count(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *CouponGormRepository) CreateRedemption(ctx context.Context, red model.CouponRedemption) error {
	return translate(r.db.WithContext(ctx).Create(&red).Error)
}
