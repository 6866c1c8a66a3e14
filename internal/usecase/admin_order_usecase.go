package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	clock  Clock
	events orderEvents
	logger *zap.Logger
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	clock Clock,
	publisher EventPublisher,
	topics OrderEventTopics,
	logger *zap.Logger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:     tx,
		clock:  clock,
		events: orderEvents{pub: publisher, topics: topics, logger: logger},
		logger: logger,
	}
}

type AdminUpdateOrderStatusInput struct {
	Status     string
	AdminNotes *string
}

type AdminUpdateOrderStatusOutput struct {
	Order        OrderOutput `json:"order"`
	StatusBefore string      `json:"status_before"`
	// キャンセル時だけ
	RefundAmount *string `json:"refund_amount,omitempty"`
}

// 注文一覧（全ユーザー）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return OrderListOutput{}, badRequest(CodeValidation, "invalid status")
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, badRequest(CodeValidation, "from must be <= to")
	}

	var out OrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return err
		}
		out.Orders, err = withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out.Pagination = newPagination(f.Page, f.Limit, total)
		return nil
	})
	if err != nil {
		return OrderListOutput{}, storeError(err)
	}
	return out, nil
}

// ステータス更新。前進のみ。cancelledは返金処理に回す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (AdminUpdateOrderStatusOutput, error) {
	if actorAdminUserID <= 0 {
		return AdminUpdateOrderStatusOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return AdminUpdateOrderStatusOutput{}, badRequest(CodeValidation, "invalid id")
	}

	next, ok := model.ParseOrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !ok {
		return AdminUpdateOrderStatusOutput{}, badRequest(CodeValidation, "invalid status")
	}

	var (
		out       AdminUpdateOrderStatusOutput
		cancelled bool
		now       time.Time
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return err
		}
		now = u.clock.Now()
		before := o.Status
		out.StatusBefore = string(before)

		switch {
		case next == before:
			// 同じならメモだけ更新
			if in.AdminNotes != nil {
				if _, err := r.Orders().TransitionStatus(ctx, o.ID, []model.OrderStatus{before}, repo.OrderStatusUpdate{
					Status:     before,
					AdminNotes: in.AdminNotes,
					UpdatedAt:  now,
				}); err != nil {
					return err
				}
				o.AdminNotes = *in.AdminNotes
				o.UpdatedAt = now
			}
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			out.Order = toOrderOutput(o, items)
			return nil

		case next == model.OrderStatusCancelled:
			res, err := refundOrder(ctx, r, o, u.clock, in.AdminNotes)
			if err != nil {
				return err
			}
			now = *res.Order.CancelledAt
			out.Order = res.Order
			refund := res.RefundAmount.StringFixed(2)
			out.RefundAmount = &refund
			cancelled = true

			if res.RefundAmount.IsPositive() {
				if err := r.AuditLogs().Create(ctx, model.AuditLog{
					ActorUserID:  actorAdminUserID,
					Action:       model.AuditActionRefundOrder,
					ResourceType: model.AuditResourceOrder,
					ResourceID:   o.ID,
					BeforeJSON:   auditJSON(map[string]any{"payment_status": o.PaymentStatus}),
					AfterJSON:    auditJSON(map[string]any{"payment_status": res.Order.PaymentStatus, "refund_amount": refund}),
					CreatedAt:    now,
				}); err != nil {
					return err
				}
			}

		default:
			if !before.CanAdvanceTo(next) {
				return badRequest(CodeInvalidTransition, fmt.Sprintf("cannot change order status from %s to %s", before, next))
			}

			upd := repo.OrderStatusUpdate{Status: next, AdminNotes: in.AdminNotes, UpdatedAt: now}
			stampTimes(&o, next, now, &upd)

			ok, err := r.Orders().TransitionStatus(ctx, o.ID, []model.OrderStatus{before}, upd)
			if err != nil {
				return err
			}
			if !ok {
				return badRequest(CodeInvalidTransition, "order status changed, please reload")
			}

			o.Status = next
			o.UpdatedAt = now
			if in.AdminNotes != nil {
				o.AdminNotes = *in.AdminNotes
			}
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			out.Order = toOrderOutput(o, items)
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   auditJSON(map[string]any{"status": before}),
			AfterJSON:    auditJSON(map[string]any{"status": next}),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return AdminUpdateOrderStatusOutput{}, storeError(err)
	}

	u.logger.Info("order status updated",
		zap.Int64("admin_user_id", actorAdminUserID),
		zap.String("order_number", out.Order.OrderNumber),
		zap.String("from", out.StatusBefore),
		zap.String("to", string(out.Order.Status)),
	)
	if cancelled {
		u.events.emit(ctx, EventOrderCancelled, out.Order.Order, now)
	}
	return out, nil
}

// shipped/deliveredの時刻を埋める。飛ばした段階の時刻も埋める。
func stampTimes(o *model.Order, next model.OrderStatus, now time.Time, upd *repo.OrderStatusUpdate) {
	switch next {
	case model.OrderStatusDelivered:
		upd.DeliveredAt = &now
		o.DeliveredAt = &now
		if o.ShippedAt == nil {
			upd.ShippedAt = &now
			o.ShippedAt = &now
		}
	case model.OrderStatusShipped:
		upd.ShippedAt = &now
		o.ShippedAt = &now
	}
}
