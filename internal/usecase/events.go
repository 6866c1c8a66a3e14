package usecase

import (
	"context"
	"time"

	"shopcore/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type OrderEventTopics struct {
	Placed    string
	Cancelled string
}

type OrderEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// コミット後に投げる。失敗しても注文は確定済みなのでログだけ残す。
type orderEvents struct {
	pub    EventPublisher
	topics OrderEventTopics
	logger *zap.Logger
}

func (e orderEvents) emit(ctx context.Context, eventType string, o model.Order, now time.Time) {
	if e.pub == nil {
		return
	}

	topic := e.topics.Placed
	if eventType == EventOrderCancelled {
		topic = e.topics.Cancelled
	}

	evt := OrderEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		OccurredAt:  now,
	}
	if err := e.pub.Publish(ctx, topic, o.OrderNumber, evt); err != nil {
		e.logger.Error("failed to publish order event",
			zap.String("type", eventType),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
	}
}
