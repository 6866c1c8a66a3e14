package repository

import (
	"context"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"gorm.io/gorm"
)

type TransactionGormRepository struct {
	db *gorm.DB
}

func NewTransactionGormRepository(db *gorm.DB) *TransactionGormRepository {
	return &TransactionGormRepository{db: db}
}

func (r *TransactionGormRepository) Create(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.Transaction{}, translate(err)
	}
	return t, nil
}

func (r *TransactionGormRepository) ListByUserID(ctx context.Context, q repo.TransactionListQuery) ([]model.Transaction, int64, error) {
	tx := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", q.UserID)
	if q.Type != "" {
		tx = tx.Where("transaction_type = ?", q.Type)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return []model.Transaction{}, 0, translate(err)
	}

	var items []model.Transaction
	offset := (q.Page - 1) * q.Limit
	if err := tx.Order("created_at desc").Order("id desc").Limit(q.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Transaction{}, 0, translate(err)
	}
	return items, total, nil
}
