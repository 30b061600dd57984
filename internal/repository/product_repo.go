package repository

import (
	"context"
	"errors"

	"agrimarket/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// DecrementStock 用条件更新完成"检查+扣减"，并发下单不会超卖
//
// status 必须写在 available_quantity 之前：MySQL 的单表 UPDATE 按顺序求值，
// 后面的表达式会看到前面已经赋过的新值。
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET status = CASE WHEN available_quantity = ? THEN ? ELSE status END,
		    available_quantity = available_quantity - ?
		WHERE id = ? AND status = ? AND available_quantity >= ?`,
		qty, model.ProductStatusSoldOut,
		qty,
		id, model.ProductStatusAvailable, qty,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockNotEnough
	}
	return nil
}

func (r *ProductRepository) RestoreStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"status":             model.ProductStatusAvailable,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}
