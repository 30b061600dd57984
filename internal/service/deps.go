package service

import (
	"context"
	"errors"
	"time"

	"agrimarket/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Locker 跨进程互斥（Redis 实现见 infrastructure/lock）
// 数据库行锁已经保证正确性，这把锁只用来让同一订单/用户的请求排队，减少死锁重试
type Locker interface {
	Lock(ctx context.Context, key, owner string) (unlock func(), err error)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

// StatusCache 订单状态缓存，提交成功后写入，写失败只记日志
type StatusCache interface {
	SetOrderStatus(ctx context.Context, orderNo, status string) error
}

type nopStatusCache struct{}

func (nopStatusCache) SetOrderStatus(context.Context, string, string) error { return nil }

// Deps 服务依赖，零值字段使用默认实现
type Deps struct {
	Store     repository.Store
	Locker    Locker
	Cache     StatusCache
	Authorize Authorizer
	Logger    *zap.Logger
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = nopLocker{}
	}
	if d.Cache == nil {
		d.Cache = nopStatusCache{}
	}
	if d.Authorize == nil {
		d.Authorize = DefaultAuthorizer
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// Settings 业务参数
type Settings struct {
	PlatformFeeRate decimal.Decimal
	Currency        string
	PaymentTimeout  time.Duration
	OrderTopic      string
	LedgerTopic     string
}

var DefaultPlatformFeeRate = decimal.RequireFromString("0.05")

func (s Settings) withDefaults() Settings {
	if s.PlatformFeeRate.IsZero() {
		s.PlatformFeeRate = DefaultPlatformFeeRate
	}
	if s.Currency == "" {
		s.Currency = "NGN"
	}
	if s.PaymentTimeout <= 0 {
		s.PaymentTimeout = 30 * time.Minute
	}
	if s.OrderTopic == "" {
		s.OrderTopic = "order-events"
	}
	if s.LedgerTopic == "" {
		s.LedgerTopic = "ledger-events"
	}
	return s
}

func newBookkeeper(d Deps, s Settings) *bookkeeper {
	return &bookkeeper{
		currency: s.Currency,
		events:   &eventWriter{orderTopic: s.OrderTopic, ledgerTopic: s.LedgerTopic, now: d.Clock},
		logger:   d.Logger,
		now:      d.Clock,
	}
}

// retryOnConflict 写阶段遇到并发冲突时整体重试一次，重试会重新读取并校验所有前置条件
func retryOnConflict(logger *zap.Logger, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, repository.ErrConflict) {
		return err
	}
	logger.Warn("并发冲突，重试一次", zap.String("op", op), zap.Error(err))

	err = fn()
	if errors.Is(err, repository.ErrConflict) {
		return Conflict("concurrent update, please retry")
	}
	return err
}

// PageResult 分页结果
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}
