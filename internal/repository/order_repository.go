package repository

import (
	"context"
	"time"

	"shopcore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// 条件付きステータス更新の差分。nilは変更なし。
type OrderStatusUpdate struct {
	Status        model.OrderStatus
	PaymentStatus *model.PaymentStatus
	AdminNotes    *string
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	UpdatedAt     time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 行ロック付き（SELECT ... FOR UPDATE）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, status string, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (model.Order, error)

	// 現在のステータスがfromのどれかのときだけ更新する。更新できなければfalse。
	TransitionStatus(ctx context.Context, orderID int64, from []model.OrderStatus, upd OrderStatusUpdate) (bool, error)
}
