package service

import (
	"context"
	"errors"
	"fmt"

	"agrimarket/internal/model"
	"agrimarket/internal/repository"
	"agrimarket/internal/validation"
	"agrimarket/pkg/idgen"
	"agrimarket/pkg/money"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService struct {
	deps     Deps
	settings Settings
	book     *bookkeeper
	logger   *zap.Logger
}

func NewOrderService(deps Deps, settings Settings) *OrderService {
	deps = deps.withDefaults()
	settings = settings.withDefaults()
	return &OrderService{
		deps:     deps,
		settings: settings,
		book:     newBookkeeper(deps, settings),
		logger:   deps.Logger.Named("order"),
	}
}

// PlaceOrder 下单：校验商品与库存、扣减库存、创建订单、记录 pending 的托管流水，
// 全部在一个事务里完成。
//
// 前置条件按顺序检查，每个都是独立的失败类型：
//  1. 商品存在                        NotFound(product)
//  2. 商品状态为 available           InvalidState
//  3. 库存足够                        InsufficientStock
//  4. 买家存在                        NotFound(user)
//  5. 调用者是买家本人或管理员        Forbidden
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, cmd validation.PlaceOrderCommand) (*model.Order, error) {
	if cmd.RequestID != "" {
		existing, err := s.findByRequestID(ctx, s.deps.Store, actor, cmd)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	var placed *model.Order
	err := retryOnConflict(s.logger, "place_order", func() error {
		return s.deps.Store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if cmd.RequestID != "" {
				existing, err := s.findByRequestID(ctx, repos, actor, cmd)
				if err != nil {
					return err
				}
				if existing != nil {
					placed = existing
					return nil
				}
			}

			order, err := s.placeOrder(ctx, repos, actor, cmd)
			if err != nil {
				return err
			}
			placed, err = repos.Orders().GetDetail(ctx, order.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("下单成功",
		zap.String("order_no", placed.OrderNo),
		zap.Int64("buyer_id", placed.BuyerID),
		zap.Int64("product_id", placed.ProductID),
		zap.String("quantity", placed.Quantity.String()),
		zap.String("total_price", money.String(placed.TotalPrice)),
	)
	return placed, nil
}

func (s *OrderService) placeOrder(ctx context.Context, repos repository.Repositories, actor Actor, cmd validation.PlaceOrderCommand) (*model.Order, error) {
	product, err := repos.Products().GetByID(ctx, cmd.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, NotFound("product")
		}
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	if product.Status != model.ProductStatusAvailable {
		return nil, InvalidState(fmt.Sprintf("product is %s", product.Status))
	}
	if product.AvailableQuantity.LessThan(cmd.Quantity) {
		return nil, InsufficientStock(cmd.Quantity.String(), product.AvailableQuantity.String())
	}

	buyer, err := repos.Users().GetByID(ctx, cmd.BuyerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, NotFound("user")
		}
		return nil, fmt.Errorf("查询买家失败: %w", err)
	}
	if !s.deps.Authorize(actor, ActionPlaceOrder, Resource{BuyerID: buyer.ID, SellerID: product.SellerID}) {
		return nil, Forbidden("only the buyer or an admin can place this order")
	}
	if buyer.ID == product.SellerID {
		return nil, Forbidden("sellers cannot order their own products")
	}

	// 数量允许三位小数，总价按分取整后可能为 0
	total := money.Total(cmd.Quantity, product.PricePerUnit)
	if !total.IsPositive() {
		return nil, Validation("quantity", "order total must be at least 0.01")
	}

	order := &model.Order{
		OrderNo:         idgen.GenerateOrderNo(),
		BuyerID:         buyer.ID,
		SellerID:        product.SellerID,
		ProductID:       product.ID,
		Quantity:        cmd.Quantity,
		UnitPrice:       product.PricePerUnit,
		TotalPrice:      total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   cmd.PaymentMethod,
		DeliveryAddress: cmd.DeliveryAddress,
	}
	if cmd.RequestID != "" {
		requestID := cmd.RequestID
		order.RequestID = &requestID
	}

	if err := repos.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	if err := repos.Products().DecrementStock(ctx, product.ID, cmd.Quantity); err != nil {
		if errors.Is(err, repository.ErrStockNotEnough) {
			return nil, InsufficientStock(cmd.Quantity.String(), product.AvailableQuantity.String())
		}
		return nil, fmt.Errorf("扣减库存失败: %w", err)
	}

	// 托管冻结先记为 pending，真正划转余额发生在 paid
	orderID := order.ID
	if _, err := s.book.record(ctx, repos, actor.ID, entry{
		UserID:      buyer.ID,
		OrderID:     &orderID,
		Type:        model.TransactionTypeEscrowHold,
		Amount:      order.TotalPrice,
		Status:      model.TransactionStatusPending,
		Description: "escrow hold for order " + order.OrderNo,
	}); err != nil {
		return nil, err
	}

	if err := s.book.events.orderPlaced(ctx, repos, actor.ID, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) findByRequestID(ctx context.Context, repos repository.Repositories, actor Actor, cmd validation.PlaceOrderCommand) (*model.Order, error) {
	existing, err := repos.Orders().GetByRequestID(ctx, cmd.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.BuyerID != cmd.BuyerID || existing.ProductID != cmd.ProductID || !existing.Quantity.Equal(cmd.Quantity) {
		return nil, InvalidState("idempotency key already used for a different order")
	}
	if !s.deps.Authorize(actor, ActionViewOrder, Resource{BuyerID: existing.BuyerID, SellerID: existing.SellerID}) {
		return nil, Forbidden("not a party to this order")
	}
	return repos.Orders().GetDetail(ctx, existing.ID)
}

// Transition 订单状态迁移。状态机表是唯一依据，所有副作用在查表和鉴权之后执行，
// 并和状态写入处于同一个事务：任何一步失败都整体回滚。
func (s *OrderService) Transition(ctx context.Context, actor Actor, cmd validation.TransitionCommand) (*model.Order, error) {
	unlock, err := s.deps.Locker.Lock(ctx, fmt.Sprintf("order:lock:%d", cmd.OrderID), uuid.NewString())
	if err != nil {
		return nil, Conflict("order is busy, please retry")
	}
	defer unlock()

	var (
		updated *model.Order
		from    string
	)
	err = retryOnConflict(s.logger, "transition_order", func() error {
		return s.deps.Store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
			order, err := repos.Orders().GetByIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				if errors.Is(err, repository.ErrOrderNotFound) {
					return NotFound("order")
				}
				return fmt.Errorf("查询订单失败: %w", err)
			}

			if !model.CanTransitionTo(order.Status, cmd.Target) {
				return IllegalTransition(order.Status, cmd.Target)
			}
			if !s.deps.Authorize(actor, ActionTransitionOrder, Resource{BuyerID: order.BuyerID, SellerID: order.SellerID}) {
				return Forbidden("only the seller or an admin can change the order status")
			}

			from = order.Status
			changes, err := s.applySideEffects(ctx, repos, actor, order, cmd)
			if err != nil {
				return err
			}

			if err := repos.Orders().UpdateStatus(ctx, order.ID, from, cmd.Target, changes); err != nil {
				if errors.Is(err, repository.ErrOrderStatusInvalid) {
					return repository.ErrConflict
				}
				return fmt.Errorf("更新订单状态失败: %w", err)
			}
			if err := s.book.events.orderStatusChanged(ctx, repos, actor.ID, order, from, cmd.Target); err != nil {
				return err
			}

			updated, err = repos.Orders().GetDetail(ctx, order.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.deps.Cache.SetOrderStatus(ctx, updated.OrderNo, updated.Status); err != nil {
		s.logger.Warn("写入订单状态缓存失败", zap.String("order_no", updated.OrderNo), zap.Error(err))
	}

	s.logger.Info("订单状态已更新",
		zap.String("order_no", updated.OrderNo),
		zap.String("from", from),
		zap.String("to", updated.Status),
		zap.Int64("actor_id", actor.ID),
	)
	return updated, nil
}

func (s *OrderService) applySideEffects(ctx context.Context, repos repository.Repositories, actor Actor, order *model.Order, cmd validation.TransitionCommand) (model.OrderChanges, error) {
	changes := model.OrderChanges{}

	switch cmd.Target {
	case model.OrderStatusCancelled, model.OrderStatusRejected:
		paymentStatus, err := s.releaseOrder(ctx, repos, actor, order)
		if err != nil {
			return changes, err
		}
		changes.PaymentStatus = paymentStatus
		if cmd.Target == model.OrderStatusCancelled {
			changes.CancellationReason = cmd.CancellationReason
		}

	case model.OrderStatusPaymentPending:
		due := s.deps.Clock().Add(s.settings.PaymentTimeout)
		changes.PaymentStatus = model.PaymentStatusProcessing
		changes.PaymentDueAt = &due

	case model.OrderStatusPaid:
		if err := s.capturePayment(ctx, repos, actor, order); err != nil {
			return changes, err
		}
		changes.PaymentStatus = model.PaymentStatusCompleted

	case model.OrderStatusDelivered:
		if err := s.settle(ctx, repos, actor, order); err != nil {
			return changes, err
		}

	case model.OrderStatusRefunded:
		refunded, err := s.refundDispute(ctx, repos, actor, order)
		if err != nil {
			return changes, err
		}
		if refunded {
			changes.PaymentStatus = model.PaymentStatusRefunded
		}
	}
	return changes, nil
}

// GetOrder 订单详情，买卖双方和管理员可见
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID int64) (*model.Order, error) {
	order, err := s.deps.Store.Orders().GetDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, NotFound("order")
		}
		return nil, err
	}
	if !s.deps.Authorize(actor, ActionViewOrder, Resource{BuyerID: order.BuyerID, SellerID: order.SellerID}) {
		return nil, Forbidden("not a party to this order")
	}
	return order, nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, actor Actor, buyerID int64, page validation.Page) (*PageResult[*model.Order], error) {
	if !s.deps.Authorize(actor, ActionListBuyerOrders, Resource{BuyerID: buyerID}) {
		return nil, Forbidden("can only list your own purchases")
	}
	orders, total, err := s.deps.Store.Orders().ListByBuyerID(ctx, buyerID, page.Page, page.PageSize)
	if err != nil {
		return nil, err
	}
	return &PageResult[*model.Order]{Items: orders, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *OrderService) ListSellerOrders(ctx context.Context, actor Actor, sellerID int64, page validation.Page) (*PageResult[*model.Order], error) {
	if !s.deps.Authorize(actor, ActionListSellerOrders, Resource{SellerID: sellerID}) {
		return nil, Forbidden("can only list your own sales")
	}
	orders, total, err := s.deps.Store.Orders().ListBySellerID(ctx, sellerID, page.Page, page.PageSize)
	if err != nil {
		return nil, err
	}
	return &PageResult[*model.Order]{Items: orders, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// ExpireStalePayments 把超过支付期限的 payment_pending 订单取消，limit 是每页条数。
// 走的是普通的 Transition，没有单独的取消路径。
func (s *OrderService) ExpireStalePayments(ctx context.Context, limit int) (int, error) {
	now := s.deps.Clock()
	cancelled := 0
	// 按 id 游标翻页，失败的订单留在原地也不会挡住后面的订单
	var afterID int64
	for {
		orders, err := s.deps.Store.Orders().GetPaymentExpired(ctx, now, afterID, limit)
		if err != nil {
			return cancelled, fmt.Errorf("查询超时订单失败: %w", err)
		}

		for _, order := range orders {
			afterID = order.ID
			_, err := s.Transition(ctx, SystemActor, validation.TransitionCommand{
				OrderID:            order.ID,
				Target:             model.OrderStatusCancelled,
				CancellationReason: "payment window expired",
			})
			if err != nil {
				// 期间可能已经被支付或取消，跳过即可
				s.logger.Warn("超时订单取消失败", zap.String("order_no", order.OrderNo), zap.Error(err))
				continue
			}
			cancelled++
		}

		if len(orders) < limit || ctx.Err() != nil {
			return cancelled, nil
		}
	}
}
