package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher_Publish(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	err := p.Publish(context.Background(), "order.placed", "ORD-1", map[string]string{"order_number": "ORD-1"})
	require.NoError(t, err)

	entries := logs.FilterMessage("event published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "order.placed", entries[0].ContextMap()["topic"])
	assert.Equal(t, "ORD-1", entries[0].ContextMap()["key"])
}

func TestLogPublisher_UnmarshalableEvent(t *testing.T) {
	p := NewLogPublisher(zap.NewNop())
	err := p.Publish(context.Background(), "t", "k", make(chan int))
	assert.Error(t, err)
}
