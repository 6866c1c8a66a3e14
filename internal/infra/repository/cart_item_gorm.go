package repository

import (
	"context"
	"errors"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartItemGormRepository struct {
	db *gorm.DB
}

func NewCartItemGormRepository(db *gorm.DB) *CartItemGormRepository {
	return &CartItemGormRepository{db: db}
}

func (r *CartItemGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (r *CartItemGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var it model.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", cartItemID).First(&it).Error; err != nil {
		return model.CartItem{}, translate(err)
	}
	return it, nil
}

func (r *CartItemGormRepository) FindByUserAndProduct(ctx context.Context, userID, productID int64) (model.CartItem, bool, error) {
	var it model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, false, nil
	}
	if err != nil {
		return model.CartItem{}, false, translate(err)
	}
	return it, true, nil
}

// INSERT ... ON CONFLICT (user_id, product_id) DO UPDATE で加算
func (r *CartItemGormRepository) UpsertAddQuantity(ctx context.Context, userID, productID, addQty int64) (model.CartItem, error) {
	it := model.CartItem{UserID: userID, ProductID: productID, Quantity: addQty}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(&it).Error
	if err != nil {
		return model.CartItem{}, translate(err)
	}

	// 加算後の行を読み直す
	out, found, err := r.FindByUserAndProduct(ctx, userID, productID)
	if err != nil {
		return model.CartItem{}, err
	}
	if !found {
		return model.CartItem{}, repo.ErrNotFound
	}
	return out, nil
}

func (r *CartItemGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartItemGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", cartItemID).Delete(&model.CartItem{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartItemGormRepository) ClearByUserID(ctx context.Context, userID int64) error {
	return translate(r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{}).Error)
}

func (r *CartItemGormRepository) CountQuantityByUserID(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("user_id = ?", userID).
		Scan(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}
