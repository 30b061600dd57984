package repository

import (
	"context"
	"time"

	"agrimarket/internal/model"

	"gorm.io/gorm"
)

// OutboxRepository 领域事件发件箱。只有 PENDING 消息会被修改，SENT/FAILED 都是终态
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetPendingMessages 按写入顺序返回，同一订单的事件不会乱序
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	updates := map[string]interface{}{"status": status}
	if status == model.OutboxStatusSent {
		updates["sent_at"] = time.Now()
	}
	return r.updatePending(ctx, id, updates)
}

func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.updatePending(ctx, id, map[string]interface{}{"retry_count": gorm.Expr("retry_count + 1")})
}

func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return r.updatePending(ctx, id, map[string]interface{}{
		"status":      model.OutboxStatusFailed,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

func (r *OutboxRepository) updatePending(ctx context.Context, id int64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(updates).Error
}
