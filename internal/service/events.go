package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/pkg/money"

	"github.com/google/uuid"
)

// eventWriter 把领域事件写进 outbox，和业务数据在同一个事务里提交
type eventWriter struct {
	orderTopic  string
	ledgerTopic string
	now         func() time.Time
}

func (w *eventWriter) write(ctx context.Context, repos repository.Repositories, topic, key string, ev model.DomainEvent) error {
	ev.EventID = uuid.NewString()
	ev.Timestamp = w.now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}

	msg := &model.OutboxMessage{
		EventID:    ev.EventID,
		EventType:  ev.Type,
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := repos.Outbox().Create(ctx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

func (w *eventWriter) orderPlaced(ctx context.Context, repos repository.Repositories, actorID int64, order *model.Order) error {
	id := order.ID
	return w.write(ctx, repos, w.orderTopic, orderKey(order.ID), model.DomainEvent{
		Type:    model.EventOrderPlaced,
		OrderID: &id,
		ActorID: actorID,
		Data: map[string]any{
			"orderNo":    order.OrderNo,
			"buyerId":    order.BuyerID,
			"sellerId":   order.SellerID,
			"productId":  order.ProductID,
			"quantity":   order.Quantity.String(),
			"totalPrice": money.String(order.TotalPrice),
		},
	})
}

func (w *eventWriter) orderStatusChanged(ctx context.Context, repos repository.Repositories, actorID int64, order *model.Order, from, to string) error {
	id := order.ID
	return w.write(ctx, repos, w.orderTopic, orderKey(order.ID), model.DomainEvent{
		Type:    model.EventOrderStatusChanged,
		OrderID: &id,
		ActorID: actorID,
		Data: map[string]any{
			"orderNo":  order.OrderNo,
			"buyerId":  order.BuyerID,
			"sellerId": order.SellerID,
			"from":     from,
			"to":       to,
		},
	})
}

func (w *eventWriter) transactionPosted(ctx context.Context, repos repository.Repositories, actorID int64, trans *model.Transaction) error {
	return w.transactionEvent(ctx, repos, actorID, trans, model.EventTransactionPosted, nil)
}

func (w *eventWriter) transactionUpdated(ctx context.Context, repos repository.Repositories, actorID int64, trans *model.Transaction, from string) error {
	return w.transactionEvent(ctx, repos, actorID, trans, model.EventTransactionUpdated, map[string]any{"from": from})
}

func (w *eventWriter) transactionEvent(ctx context.Context, repos repository.Repositories, actorID int64, trans *model.Transaction, eventType string, extra map[string]any) error {
	id := trans.ID
	data := map[string]any{
		"type":     trans.Type,
		"status":   trans.Status,
		"userId":   trans.UserID,
		"amount":   money.String(trans.Amount),
		"currency": trans.Currency,
	}
	for k, v := range extra {
		data[k] = v
	}
	return w.write(ctx, repos, w.ledgerTopic, fmt.Sprintf("user-%d", trans.UserID), model.DomainEvent{
		Type:          eventType,
		OrderID:       trans.OrderID,
		TransactionID: &id,
		ActorID:       actorID,
		Data:          data,
	})
}
