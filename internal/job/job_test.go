package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agrimarket/internal/model"
	"agrimarket/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, topic, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[key] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func seedOutbox(t *testing.T, store *memory.Store, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxMessage{
			MessageKey: key,
			Topic:      "order-events",
			Payload:    `{}`,
		}))
	}
}

func TestOutboxSender_SendsInOrder(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, "order-1", "order-2", "order-1")
	pub := &fakePublisher{}

	sender := NewOutboxSender(store.Outbox(), pub, 3, zap.NewNop())
	sender.processPendingMessages(context.Background())

	assert.Equal(t, []string{"order-events/order-1", "order-events/order-2", "order-events/order-1"}, pub.sent)
	pending, err := store.Outbox().GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 已发送的消息不会再被发送
	sender.processPendingMessages(context.Background())
	assert.Len(t, pub.sent, 3)
}

func TestOutboxSender_RetriesThenFails(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, "order-9")
	pub := &fakePublisher{failFor: map[string]bool{"order-9": true}}

	sender := NewOutboxSender(store.Outbox(), pub, 3, zap.NewNop())
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		sender.processPendingMessages(ctx)
		pending, err := store.Outbox().GetPendingMessages(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, i, pending[0].RetryCount)
	}

	sender.processPendingMessages(ctx)
	pending, err := store.Outbox().GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, pub.sent)
}

func TestOutboxSender_StopIsIdempotent(t *testing.T) {
	sender := NewOutboxSender(memory.NewStore().Outbox(), &fakePublisher{}, 3, zap.NewNop())

	go sender.Start(context.Background())
	sender.Stop()
	sender.Stop()
	waitDone(t, sender.Done())
}

// Done 关闭之后不会再有 Publish，调用方可以安全关闭 publisher
func TestOutboxSender_NoPublishAfterDone(t *testing.T) {
	store := memory.NewStore()
	pub := &fakePublisher{}
	sender := NewOutboxSender(store.Outbox(), pub, 3, zap.NewNop())
	sender.interval = time.Millisecond

	go sender.Start(context.Background())
	seedOutbox(t, store, "order-1")
	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.sent) == 1
	}, 2*time.Second, time.Millisecond)

	sender.Stop()
	waitDone(t, sender.Done())

	seedOutbox(t, store, "order-2")
	time.Sleep(20 * time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"order-events/order-1"}, pub.sent)
}

type fakeExpirer struct {
	calls  int
	limits []int
	n      int
	err    error
}

func (e *fakeExpirer) ExpireStalePayments(_ context.Context, limit int) (int, error) {
	e.calls++
	e.limits = append(e.limits, limit)
	return e.n, e.err
}

func TestPaymentTimeoutJob_OneCallPerTick(t *testing.T) {
	expirer := &fakeExpirer{n: 250}
	j := NewPaymentTimeoutJob(expirer, zap.NewNop())

	j.cancelExpiredOrders(context.Background())
	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, []int{100}, expirer.limits)
}

func TestPaymentTimeoutJob_LogsError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	j := NewPaymentTimeoutJob(expirer, zap.NewNop())

	j.cancelExpiredOrders(context.Background())
	assert.Equal(t, 1, expirer.calls)
}

func TestPaymentTimeoutJob_StopsOnCancel(t *testing.T) {
	j := NewPaymentTimeoutJob(&fakeExpirer{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)
	cancel()
	waitDone(t, j.Done())
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not exit")
	}
}
