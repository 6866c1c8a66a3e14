package repository

import (
	"context"

	"shopcore/internal/domain/model"
)

type TransactionListQuery struct {
	UserID int64
	Type   string
	Page   int
	Limit  int
}

// ウォレット台帳（追記のみ、更新・削除はしない）
type TransactionRepository interface {
	Create(ctx context.Context, t model.Transaction) (model.Transaction, error)
	// 新しい順
	ListByUserID(ctx context.Context, q TransactionListQuery) ([]model.Transaction, int64, error)
}
