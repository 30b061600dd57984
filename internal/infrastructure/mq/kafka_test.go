package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestKafkaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"order.placed"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer)
	require.NoError(t, p.Publish(context.Background(), "order-events", "order-1", `{"type":"order.placed"}`))
	assert.ErrorIs(t, p.Publish(context.Background(), "order-events", "order-1", `{}`), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := NewPublisherWithProducer(producer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "order-events", "k", "v"), context.Canceled)
	require.NoError(t, p.Close())
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), "ledger-events", "user-1", `{"a":1}`))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ledger-events", logs.All()[0].ContextMap()["topic"])
	assert.NoError(t, p.Close())
}
