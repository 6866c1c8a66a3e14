package repository

import (
	"context"
	"errors"

	"shopcore/internal/domain/model"

	"github.com/shopspring/decimal"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 行ロック付き。残高を読む→変えるはこれで取る。
	FindByIDForUpdate(ctx context.Context, userID int64) (*model.User, error)
	// 残高がbeforeのままのときだけafterにする
	UpdateWalletBalance(ctx context.Context, userID int64, before, after decimal.Decimal) (bool, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
	IncrementTokenVersion(ctx context.Context, userID int64) error
}
