package repository

import (
	"context"
	"errors"

	"agrimarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateBalances 余额由调用方在行锁内算好，这里只负责带版本号写回
// 余额不能为负的约束同时放在 WHERE 里兜底
func (r *UserRepository) UpdateBalances(ctx context.Context, user *model.User) error {
	if user.WalletBalance.IsNegative() || user.EscrowBalance.IsNegative() {
		return errors.New("balance must not be negative")
	}

	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"wallet_balance": user.WalletBalance,
			"escrow_balance": user.EscrowBalance,
			"version":        gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, user.ID); err != nil {
			return err
		}
		return ErrConflict
	}

	user.Version++
	return nil
}
