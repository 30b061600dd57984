package job

import (
	"context"
	"sync"
	"time"

	"agrimarket/internal/infrastructure/mq"
	"agrimarket/internal/model"
	"agrimarket/internal/repository"

	"go.uber.org/zap"
)

// OutboxSender 轮询 outbox 表，把领域事件投递出去。
// 至少一次投递：发送成功但更新状态失败时，下一轮会重复发送，消费方按 eventId 去重。
type OutboxSender struct {
	outbox        repository.OutboxStore
	publisher     mq.Publisher
	logger        *zap.Logger
	maxRetryCount int
	stopCh        chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(outbox repository.OutboxStore, publisher mq.Publisher, maxRetryCount int, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outbox:        outbox,
		publisher:     publisher,
		logger:        logger.Named("outbox_sender"),
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

// Start 阻塞运行，返回时关闭 Done()
func (s *OutboxSender) Start(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done 在 Start 返回后关闭，关闭依赖（如 publisher）前先等待它
func (s *OutboxSender) Done() <-chan struct{} {
	return s.done
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outbox.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outbox.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return
		}
		s.logger.Debug("消息发送成功", zap.Int64("id", msg.ID), zap.String("topic", msg.Topic), zap.String("key", msg.MessageKey))
		return
	}

	s.logger.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
			return
		}
		s.logger.Error("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID), zap.String("topic", msg.Topic))
		return
	}

	if err := s.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}
}
