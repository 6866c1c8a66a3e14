package repository

import (
	"context"

	"shopcore/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	FindByUserAndProduct(ctx context.Context, userID int64, productID int64) (model.CartItem, bool, error)
	// 同一商品は数量を加算
	UpsertAddQuantity(ctx context.Context, userID int64, productID int64, addQty int64) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	ClearByUserID(ctx context.Context, userID int64) error
	// 数量の合計
	CountQuantityByUserID(ctx context.Context, userID int64) (int64, error)
}
