package service

import (
	"context"
	"errors"
	"fmt"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/internal/validation"
	"agrimarket/pkg/money"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService 钱包：余额查询、流水查询、直接记账
type AccountService struct {
	deps   Deps
	book   *bookkeeper
	logger *zap.Logger
}

func NewAccountService(deps Deps, settings Settings) *AccountService {
	deps = deps.withDefaults()
	settings = settings.withDefaults()
	return &AccountService{
		deps:   deps,
		book:   newBookkeeper(deps, settings),
		logger: deps.Logger.Named("account"),
	}
}

func (s *AccountService) GetAccount(ctx context.Context, actor Actor, userID int64) (*model.User, error) {
	if !s.deps.Authorize(actor, ActionLedgerRead, Resource{UserID: userID}) {
		return nil, Forbidden("can only view your own wallet")
	}
	user, err := s.deps.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, NotFound("user")
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) ListTransactions(ctx context.Context, actor Actor, userID int64, page validation.Page) (*PageResult[*model.Transaction], error) {
	if !s.deps.Authorize(actor, ActionLedgerRead, Resource{UserID: userID}) {
		return nil, Forbidden("can only view your own transactions")
	}
	items, total, err := s.deps.Store.Transactions().ListByUserID(ctx, userID, page.Page, page.PageSize)
	if err != nil {
		return nil, err
	}
	return &PageResult[*model.Transaction]{Items: items, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// Apply 对用户执行一笔记账：修改余额并追加 completed 流水，两者同一事务。
// 普通用户只能给自己充值或提现，其他类型属于人工调账，仅管理员可用。
func (s *AccountService) Apply(ctx context.Context, actor Actor, cmd validation.LedgerCommand) (*model.Transaction, error) {
	if !s.deps.Authorize(actor, ActionLedgerWrite, Resource{UserID: cmd.UserID}) {
		return nil, Forbidden("can only move funds in your own wallet")
	}
	if cmd.Type != model.TransactionTypeDeposit && cmd.Type != model.TransactionTypeWithdrawal &&
		!s.deps.Authorize(actor, ActionLedgerAdjust, Resource{UserID: cmd.UserID}) {
		return nil, Forbidden(fmt.Sprintf("%s entries are reserved for admins", cmd.Type))
	}

	unlock, err := s.deps.Locker.Lock(ctx, fmt.Sprintf("wallet:lock:%d", cmd.UserID), uuid.NewString())
	if err != nil {
		return nil, Conflict("wallet is busy, please retry")
	}
	defer unlock()

	var posted *model.Transaction
	err = retryOnConflict(s.logger, "apply_transaction", func() error {
		return s.deps.Store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			posted, err = s.book.post(ctx, repos, actor.ID, entry{
				UserID:      cmd.UserID,
				Type:        cmd.Type,
				Amount:      cmd.Amount,
				Currency:    cmd.Currency,
				Reference:   cmd.PaymentReference,
				Description: cmd.Description,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("记账成功",
		zap.Int64("user_id", cmd.UserID),
		zap.String("type", cmd.Type),
		zap.String("amount", money.String(cmd.Amount)),
		zap.Int64("actor_id", actor.ID),
	)
	return posted, nil
}
