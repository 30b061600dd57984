package model

import (
	"time"
)

// outbox 消息状态。只有 PENDING 会被发送任务更新，SENT/FAILED 都是终态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 与业务写入同一事务落库的待投递事件
// MessageKey 是 Kafka 分区键，同一订单的事件按 id 顺序投递
type OutboxMessage struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string     `gorm:"type:char(36);uniqueIndex;not null" json:"eventId"`
	EventType  string     `gorm:"type:varchar(64);index;not null" json:"eventType"`
	MessageKey string     `gorm:"type:varchar(64);not null" json:"messageKey"`
	Topic      string     `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	Status     string     `gorm:"type:varchar(16);index;not null" json:"status"`
	RetryCount int        `gorm:"not null;default:0" json:"retryCount"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventTransactionPosted  = "ledger.transaction_posted"
	EventTransactionUpdated = "ledger.transaction_updated"
)

// DomainEvent 写入 outbox 的领域事件，由通知系统消费
type DomainEvent struct {
	EventID       string         `json:"eventId"`
	Type          string         `json:"type"`
	OrderID       *int64         `json:"orderId,omitempty"`
	TransactionID *int64         `json:"transactionId,omitempty"`
	ActorID       int64          `json:"actorId"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data,omitempty"`
}
