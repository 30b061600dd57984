package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// GormStore 基于 gorm 的仓储入口，MySQL 和 PostgreSQL 共用
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Orders() OrderStore             { return NewOrderRepository(s.db) }
func (s *GormStore) Products() ProductStore         { return NewProductRepository(s.db) }
func (s *GormStore) Users() UserStore               { return NewUserRepository(s.db) }
func (s *GormStore) Transactions() TransactionStore { return NewTransactionRepository(s.db) }
func (s *GormStore) Outbox() OutboxStore            { return NewOutboxRepository(s.db) }

// Execute 在一个数据库事务中执行 fn，fn 返回错误或 panic 时整体回滚
func (s *GormStore) Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormStore{db: tx})
	})
	return translateError(err)
}

func translateError(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// isSerializationFailure 死锁或锁等待超时
//
//	MySQL:      1213 ER_LOCK_DEADLOCK, 1205 ER_LOCK_WAIT_TIMEOUT
//	PostgreSQL: 40001 serialization_failure, 40P01 deadlock_detected
func isSerializationFailure(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
