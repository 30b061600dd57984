package repository

import (
	"context"
	"errors"
	"time"

	"agrimarket/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusInvalid  = errors.New("order status changed concurrently")
	ErrProductNotFound     = errors.New("product not found")
	ErrStockNotEnough      = errors.New("insufficient stock")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionFinal    = errors.New("transaction already in terminal status")
	ErrDuplicateReference  = errors.New("duplicate payment reference")

	// ErrConflict 并发冲突（死锁、序列化失败、乐观锁），调用方可以整体重试
	ErrConflict = errors.New("concurrent update conflict")
)

type OrderStore interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Order, error)
	// GetDetail 返回带商品、买家和流水的完整订单
	GetDetail(ctx context.Context, id int64) (*model.Order, error)
	// GetByRequestID 没有记录时返回 nil, nil
	GetByRequestID(ctx context.Context, requestID string) (*model.Order, error)
	// UpdateStatus 条件更新：只有当前状态仍为 fromStatus 时才生效
	UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, changes model.OrderChanges) error
	ListByBuyerID(ctx context.Context, buyerID int64, page, pageSize int) ([]*model.Order, int64, error)
	ListBySellerID(ctx context.Context, sellerID int64, page, pageSize int) ([]*model.Order, int64, error)
	// GetPaymentExpired 支付期限早于 before 的 payment_pending 订单，按 id 升序取 afterID 之后的一页
	GetPaymentExpired(ctx context.Context, before time.Time, afterID int64, limit int) ([]*model.Order, error)
}

type ProductStore interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	// DecrementStock 原子条件扣减，库存不足（或商品不可售）时返回 ErrStockNotEnough
	DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error
	// RestoreStock 归还库存并把商品恢复为 available
	RestoreStock(ctx context.Context, id int64, qty decimal.Decimal) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error)
	// UpdateBalances 按版本号写回余额，版本不一致返回 ErrConflict
	UpdateBalances(ctx context.Context, user *model.User) error
}

type TransactionStore interface {
	Create(ctx context.Context, trans *model.Transaction) error
	ListByOrderID(ctx context.Context, orderID int64) ([]*model.Transaction, error)
	// FindByOrder 没有记录时返回 nil, nil
	FindByOrder(ctx context.Context, orderID int64, transType, status string) (*model.Transaction, error)
	// UpdateStatus 只允许从非终态迁出，终态流水返回 ErrTransactionFinal
	UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string, processedAt *time.Time) error
	ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error)
}

type OutboxStore interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// Repositories 一组共享同一个事务（或同一个连接）的仓储
type Repositories interface {
	Orders() OrderStore
	Products() ProductStore
	Users() UserStore
	Transactions() TransactionStore
	Outbox() OutboxStore
}

// Store 仓储入口。Execute 内的所有写操作要么全部提交，要么全部回滚
type Store interface {
	Repositories
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
