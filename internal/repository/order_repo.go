package repository

import (
	"context"
	"errors"
	"time"

	"agrimarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
	if err != nil && isDuplicateKey(err) {
		// 并发的同一幂等键，交给调用方重试后读到已存在的订单
		return ErrConflict
	}
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *OrderRepository) GetDetail(ctx context.Context, id int64) (*model.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Preload("Product").
		Preload("Buyer").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", id))
}

func (r *OrderRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Order, error) {
	order, err := r.first(r.db.WithContext(ctx).Where("request_id = ?", requestID))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	return order, err
}

func (r *OrderRepository) first(query *gorm.DB) (*model.Order, error) {
	var order model.Order
	err := query.First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, changes model.OrderChanges) error {
	updates := map[string]interface{}{
		"status": toStatus,
	}
	if changes.PaymentStatus != "" {
		updates["payment_status"] = changes.PaymentStatus
	}
	if changes.CancellationReason != "" {
		updates["cancellation_reason"] = changes.CancellationReason
	}
	if changes.PaymentDueAt != nil {
		updates["payment_due_at"] = changes.PaymentDueAt
	}

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

func (r *OrderRepository) ListByBuyerID(ctx context.Context, buyerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return r.list(ctx, "buyer_id = ?", buyerID, page, pageSize)
}

func (r *OrderRepository) ListBySellerID(ctx context.Context, sellerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return r.list(ctx, "seller_id = ?", sellerID, page, pageSize)
}

func (r *OrderRepository) list(ctx context.Context, cond string, partyID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where(cond, partyID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Preload("Product").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

func (r *OrderRepository) GetPaymentExpired(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_due_at < ? AND id > ?", model.OrderStatusPaymentPending, before, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
