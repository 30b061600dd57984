package repository

import (
	"context"
	"errors"
	"time"

	"agrimarket/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, trans *model.Transaction) error {
	err := r.db.WithContext(ctx).Create(trans).Error
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateReference
	}
	return err
}

func (r *TransactionRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) FindByOrder(ctx context.Context, orderID int64, transType, status string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND status = ?", orderID, transType, status).
		Order("id ASC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, processedAt *time.Time) error {
	if model.IsTerminalTransactionStatus(fromStatus) {
		return ErrTransactionFinal
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if processedAt != nil {
		updates["processed_at"] = processedAt
	}

	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
