package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/pkg/idgen"
	"agrimarket/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// applyTransaction 账本原语：按流水类型修改用户余额
//
//	deposit / refund / bonus          wallet += amount
//	withdrawal / purchase / payout    wallet -= amount（余额不足拒绝）
//	escrow_hold                       wallet -> escrow
//	escrow_release / escrow_refund    escrow -> wallet
//	fee / other                       只记账，不动余额
//
// 只修改内存中的 user，持久化由调用方在同一个事务里完成。
func applyTransaction(user *model.User, transType string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Validation("amount", "must be greater than 0")
	}

	switch transType {
	case model.TransactionTypeDeposit, model.TransactionTypeRefund, model.TransactionTypeBonus:
		user.WalletBalance = user.WalletBalance.Add(amount)

	case model.TransactionTypeWithdrawal, model.TransactionTypePurchase, model.TransactionTypePayout:
		if user.WalletBalance.LessThan(amount) {
			return InsufficientBalance(user.ID)
		}
		user.WalletBalance = user.WalletBalance.Sub(amount)

	case model.TransactionTypeEscrowHold:
		if user.WalletBalance.LessThan(amount) {
			return InsufficientBalance(user.ID)
		}
		user.WalletBalance = user.WalletBalance.Sub(amount)
		user.EscrowBalance = user.EscrowBalance.Add(amount)

	case model.TransactionTypeEscrowRelease, model.TransactionTypeEscrowRefund:
		if user.EscrowBalance.LessThan(amount) {
			return InsufficientEscrow(user.ID)
		}
		user.EscrowBalance = user.EscrowBalance.Sub(amount)
		user.WalletBalance = user.WalletBalance.Add(amount)

	case model.TransactionTypeFee, model.TransactionTypeOther:

	default:
		return Validation("type", fmt.Sprintf("unknown transaction type %q", transType))
	}
	return nil
}

// bookkeeper 订单服务和钱包服务共用的记账逻辑，所有方法都必须在 Execute 内调用
type bookkeeper struct {
	currency string
	events   *eventWriter
	logger   *zap.Logger
	now      func() time.Time
}

// entry 一笔待写入的流水
type entry struct {
	UserID      int64
	OrderID     *int64
	Type        string
	Amount      decimal.Decimal
	Status      string
	Currency    string
	Reference   string
	Description string
}

// lockUser 行锁读取用户
func (b *bookkeeper) lockUser(ctx context.Context, repos repository.Repositories, userID int64) (*model.User, error) {
	user, err := repos.Users().GetByIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, NotFound("user")
		}
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	return user, nil
}

// adjust 在行锁内修改余额并写回
func (b *bookkeeper) adjust(ctx context.Context, repos repository.Repositories, userID int64, mutate func(u *model.User) error) (*model.User, error) {
	user, err := b.lockUser(ctx, repos, userID)
	if err != nil {
		return nil, err
	}
	if err := mutate(user); err != nil {
		return nil, err
	}
	if err := repos.Users().UpdateBalances(ctx, user); err != nil {
		return nil, fmt.Errorf("update balances of user %d: %w", userID, err)
	}
	return user, nil
}

// apply 对用户执行账本原语，不写流水
func (b *bookkeeper) apply(ctx context.Context, repos repository.Repositories, userID int64, transType string, amount decimal.Decimal) (*model.User, error) {
	return b.adjust(ctx, repos, userID, func(u *model.User) error {
		return applyTransaction(u, transType, amount)
	})
}

// post 执行账本原语并追加一笔 completed 流水
func (b *bookkeeper) post(ctx context.Context, repos repository.Repositories, actorID int64, e entry) (*model.Transaction, error) {
	if _, err := b.apply(ctx, repos, e.UserID, e.Type, e.Amount); err != nil {
		return nil, err
	}
	e.Status = model.TransactionStatusCompleted
	return b.record(ctx, repos, actorID, e)
}

// record 只追加流水（不动余额），并写出领域事件
func (b *bookkeeper) record(ctx context.Context, repos repository.Repositories, actorID int64, e entry) (*model.Transaction, error) {
	amount := money.Round(e.Amount)
	if !amount.IsPositive() {
		return nil, Validation("amount", "must be greater than 0")
	}
	currency := e.Currency
	if currency == "" {
		currency = b.currency
	}
	reference := e.Reference
	if reference == "" {
		reference = idgen.GenerateReference()
	}

	trans := &model.Transaction{
		Amount:           amount,
		Currency:         currency,
		Type:             e.Type,
		Status:           e.Status,
		UserID:           e.UserID,
		OrderID:          e.OrderID,
		PaymentReference: &reference,
		Description:      e.Description,
	}
	if e.Status == model.TransactionStatusCompleted {
		now := b.now()
		trans.ProcessedAt = &now
	}

	if err := repos.Transactions().Create(ctx, trans); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, Validation("paymentReference", "payment reference already used")
		}
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	if err := b.events.transactionPosted(ctx, repos, actorID, trans); err != nil {
		return nil, err
	}

	b.logger.Info("流水已记录",
		zap.Int64("transaction_id", trans.ID),
		zap.String("type", trans.Type),
		zap.String("status", trans.Status),
		zap.Int64("user_id", trans.UserID),
		zap.String("amount", money.String(trans.Amount)),
	)
	return trans, nil
}

// complete 把 pending 流水推进到 completed
func (b *bookkeeper) complete(ctx context.Context, repos repository.Repositories, actorID int64, trans *model.Transaction) error {
	now := b.now()
	if err := repos.Transactions().UpdateStatus(ctx, trans.ID, trans.Status, model.TransactionStatusCompleted, &now); err != nil {
		return fmt.Errorf("complete transaction %d: %w", trans.ID, err)
	}
	from := trans.Status
	trans.Status = model.TransactionStatusCompleted
	trans.ProcessedAt = &now
	return b.events.transactionUpdated(ctx, repos, actorID, trans, from)
}

// cancelPending 取消订单下所有仍在 pending 的流水；终态流水保持不变
func (b *bookkeeper) cancelPending(ctx context.Context, repos repository.Repositories, actorID int64, orderID int64) error {
	transactions, err := repos.Transactions().ListByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list transactions of order %d: %w", orderID, err)
	}
	for _, trans := range transactions {
		if trans.Status != model.TransactionStatusPending {
			continue
		}
		if err := repos.Transactions().UpdateStatus(ctx, trans.ID, trans.Status, model.TransactionStatusCancelled, nil); err != nil {
			return fmt.Errorf("cancel transaction %d: %w", trans.ID, err)
		}
		trans.Status = model.TransactionStatusCancelled
		if err := b.events.transactionUpdated(ctx, repos, actorID, trans, model.TransactionStatusPending); err != nil {
			return err
		}
	}
	return nil
}
