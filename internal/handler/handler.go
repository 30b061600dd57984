package handler

import (
	"agrimarket/internal/service"
	"agrimarket/internal/validation"
	"agrimarket/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	orders          *service.OrderService
	accounts        *service.AccountService
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
}

func NewHandler(orders *service.OrderService, accounts *service.AccountService, defaultPageSize, maxPageSize int, logger *zap.Logger) *Handler {
	return &Handler{
		orders:          orders,
		accounts:        accounts,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

// bindJSON 请求体无法解析时统一返回 body 字段错误
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.fail(c, &validation.Error{Field: "body", Message: "malformed JSON: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) page(c *gin.Context) (validation.Page, bool) {
	page, err := validation.Pagination(c.Query("page"), c.Query("page_size"), h.defaultPageSize, h.maxPageSize)
	if err != nil {
		h.fail(c, err)
		return page, false
	}
	return page, true
}

func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := validation.ID(name, c.Param(name))
	if err != nil {
		h.fail(c, err)
		return 0, false
	}
	return id, true
}

// ============================================================
// 订单
// ============================================================

// PlaceOrder 下单
// POST /api/v1/orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req validation.PlaceOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmd, err := validation.PlaceOrder(req, c.GetHeader(HeaderIdempotencyKey))
	if err != nil {
		h.fail(c, err)
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), actorFrom(c), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, order)
}

// UpdateOrderStatus 订单状态迁移
// PUT /api/v1/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req validation.TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmd, err := validation.Transition(id, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	order, err := h.orders.Transition(c.Request.Context(), actorFrom(c), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrder GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

// ListBuyerOrders GET /api/v1/orders/buyer/:buyerId?page=&page_size=
func (h *Handler) ListBuyerOrders(c *gin.Context) {
	buyerID, ok := h.pathID(c, "buyerId")
	if !ok {
		return
	}
	page, ok := h.page(c)
	if !ok {
		return
	}
	result, err := h.orders.ListBuyerOrders(c.Request.Context(), actorFrom(c), buyerID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ListSellerOrders GET /api/v1/orders/seller/:sellerId?page=&page_size=
func (h *Handler) ListSellerOrders(c *gin.Context) {
	sellerID, ok := h.pathID(c, "sellerId")
	if !ok {
		return
	}
	page, ok := h.page(c)
	if !ok {
		return
	}
	result, err := h.orders.ListSellerOrders(c.Request.Context(), actorFrom(c), sellerID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 钱包
// ============================================================

// GetWallet GET /api/v1/wallet/:userId
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	user, err := h.accounts.GetAccount(c.Request.Context(), actorFrom(c), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"userId":        user.ID,
		"walletBalance": user.WalletBalance.StringFixed(2),
		"escrowBalance": user.EscrowBalance.StringFixed(2),
	})
}

// ListWalletTransactions GET /api/v1/wallet/:userId/transactions?page=&page_size=
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	userID, ok := h.pathID(c, "userId")
	if !ok {
		return
	}
	page, ok := h.page(c)
	if !ok {
		return
	}
	result, err := h.accounts.ListTransactions(c.Request.Context(), actorFrom(c), userID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ApplyTransaction 直接记账（充值、提现、管理员调账）
// POST /api/v1/wallet/transactions
func (h *Handler) ApplyTransaction(c *gin.Context) {
	var req validation.LedgerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmd, err := validation.Ledger(req)
	if err != nil {
		h.fail(c, err)
		return
	}

	trans, err := h.accounts.Apply(c.Request.Context(), actorFrom(c), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, trans)
}
