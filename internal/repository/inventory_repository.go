package repository

import (
	"context"

	"shopcore/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫の現在値を設定（手動入荷など）
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算し、sold_countを加算する。
	// tracks_inventory=false の商品は在庫を見ずにsold_countだけ加算。
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）。sold_countは戻さない。
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
