package repository

import (
	"context"

	"shopcore/internal/domain/model"
)

type AddressRepository interface {
	Create(ctx context.Context, address model.Address) (model.Address, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
	Delete(ctx context.Context, addressID int64) error
	//デフォルト住所の切り替え
	SetDefault(ctx context.Context, userID, addressID int64) error
}
