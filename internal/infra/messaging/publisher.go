package messaging

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Publisher はコミット後のイベント送信
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

// ブローカー未設定時はログに出すだけ
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic, key string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Info("event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("payload", b),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
