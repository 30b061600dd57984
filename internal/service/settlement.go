package service

import (
	"context"
	"errors"
	"fmt"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/pkg/money"

	"go.uber.org/zap"
)

// 订单状态迁移触发的资金副作用，全部在 Transition 的事务内执行

func (s *OrderService) findTransaction(ctx context.Context, repos repository.Repositories, orderID int64, transType, status string) (*model.Transaction, error) {
	trans, err := repos.Transactions().FindByOrder(ctx, orderID, transType, status)
	if err != nil {
		return nil, fmt.Errorf("查询订单流水失败: %w", err)
	}
	return trans, nil
}

// releaseOrder cancelled / rejected：归还库存，取消未完成流水，已扣款未结算的退回买家
func (s *OrderService) releaseOrder(ctx context.Context, repos repository.Repositories, actor Actor, order *model.Order) (string, error) {
	if err := repos.Products().RestoreStock(ctx, order.ProductID, order.Quantity); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return "", NotFound("product")
		}
		return "", fmt.Errorf("归还库存失败: %w", err)
	}

	if err := s.book.cancelPending(ctx, repos, actor.ID, order.ID); err != nil {
		return "", err
	}

	hold, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowHold, model.TransactionStatusCompleted)
	if err != nil {
		return "", err
	}
	released, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowRelease, model.TransactionStatusCompleted)
	if err != nil {
		return "", err
	}
	if hold == nil || released != nil {
		return model.PaymentStatusFailed, nil
	}

	orderID := order.ID
	if _, err := s.book.post(ctx, repos, actor.ID, entry{
		UserID:      order.BuyerID,
		OrderID:     &orderID,
		Type:        model.TransactionTypeEscrowRefund,
		Amount:      hold.Amount,
		Description: "escrow refund for order " + order.OrderNo,
	}); err != nil {
		return "", err
	}
	return model.PaymentStatusRefunded, nil
}

// capturePayment paid：把下单时记录的 pending 冻结真正执行（钱包 -> 托管）
func (s *OrderService) capturePayment(ctx context.Context, repos repository.Repositories, actor Actor, order *model.Order) error {
	hold, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowHold, model.TransactionStatusPending)
	if err != nil {
		return err
	}
	if hold == nil {
		return InvalidState("order has no pending escrow hold")
	}

	if _, err := s.book.apply(ctx, repos, order.BuyerID, model.TransactionTypeEscrowHold, hold.Amount); err != nil {
		return err
	}
	return s.book.complete(ctx, repos, actor.ID, hold)
}

// settle delivered：扣除平台服务费后把托管款结算给卖家。
// 没有已完成的冻结，或者已经结算过，都视为无事可做。
func (s *OrderService) settle(ctx context.Context, repos repository.Repositories, actor Actor, order *model.Order) error {
	hold, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowHold, model.TransactionStatusCompleted)
	if err != nil {
		return err
	}
	if hold == nil {
		s.logger.Warn("订单没有已完成的托管冻结，跳过结算", zap.String("order_no", order.OrderNo))
		return nil
	}
	released, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowRelease, model.TransactionStatusCompleted)
	if err != nil {
		return err
	}
	if released != nil {
		s.logger.Warn("订单已结算，跳过", zap.String("order_no", order.OrderNo))
		return nil
	}

	fee, sellerAmount := money.SplitFee(order.TotalPrice, s.settings.PlatformFeeRate)

	if _, err := s.book.adjust(ctx, repos, order.BuyerID, func(u *model.User) error {
		if u.EscrowBalance.LessThan(order.TotalPrice) {
			return InsufficientEscrow(u.ID)
		}
		u.EscrowBalance = u.EscrowBalance.Sub(order.TotalPrice)
		return nil
	}); err != nil {
		return err
	}
	if _, err := s.book.adjust(ctx, repos, order.SellerID, func(u *model.User) error {
		u.WalletBalance = u.WalletBalance.Add(sellerAmount)
		return nil
	}); err != nil {
		return err
	}

	orderID := order.ID
	if _, err := s.book.record(ctx, repos, actor.ID, entry{
		UserID:      order.SellerID,
		OrderID:     &orderID,
		Type:        model.TransactionTypeEscrowRelease,
		Amount:      sellerAmount,
		Status:      model.TransactionStatusCompleted,
		Description: "settlement for order " + order.OrderNo,
	}); err != nil {
		return err
	}
	// 小额订单的手续费可能取整为 0，流水金额必须为正，此时不记手续费
	if fee.IsPositive() {
		if _, err := s.book.record(ctx, repos, actor.ID, entry{
			UserID:      order.BuyerID,
			OrderID:     &orderID,
			Type:        model.TransactionTypeFee,
			Amount:      fee,
			Status:      model.TransactionStatusCompleted,
			Description: "platform fee for order " + order.OrderNo,
		}); err != nil {
			return err
		}
	}

	s.logger.Info("订单结算完成",
		zap.String("order_no", order.OrderNo),
		zap.String("seller_amount", money.String(sellerAmount)),
		zap.String("platform_fee", money.String(fee)),
	)
	return nil
}

// refundDispute disputed -> refunded。
// 未结算：托管款原路退回；已结算：买家全额退款，卖家追回结算款，平台服务费由平台承担。
func (s *OrderService) refundDispute(ctx context.Context, repos repository.Repositories, actor Actor, order *model.Order) (bool, error) {
	hold, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowHold, model.TransactionStatusCompleted)
	if err != nil {
		return false, err
	}
	if hold == nil {
		s.logger.Warn("订单没有已完成的托管冻结，无需退款", zap.String("order_no", order.OrderNo))
		return false, nil
	}
	released, err := s.findTransaction(ctx, repos, order.ID, model.TransactionTypeEscrowRelease, model.TransactionStatusCompleted)
	if err != nil {
		return false, err
	}

	orderID := order.ID
	if released == nil {
		_, err := s.book.post(ctx, repos, actor.ID, entry{
			UserID:      order.BuyerID,
			OrderID:     &orderID,
			Type:        model.TransactionTypeEscrowRefund,
			Amount:      hold.Amount,
			Description: "dispute refund for order " + order.OrderNo,
		})
		return err == nil, err
	}

	if _, err := s.book.post(ctx, repos, actor.ID, entry{
		UserID:      order.SellerID,
		OrderID:     &orderID,
		Type:        model.TransactionTypeWithdrawal,
		Amount:      released.Amount,
		Description: "dispute claw-back for order " + order.OrderNo,
	}); err != nil {
		return false, err
	}
	if _, err := s.book.post(ctx, repos, actor.ID, entry{
		UserID:      order.BuyerID,
		OrderID:     &orderID,
		Type:        model.TransactionTypeRefund,
		Amount:      order.TotalPrice,
		Description: "dispute refund for order " + order.OrderNo,
	}); err != nil {
		return false, err
	}
	return true, nil
}
