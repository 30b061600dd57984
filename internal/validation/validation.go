// Package validation 所有入参的统一校验入口。
// 请求体在这里被解析成带类型的命令对象，服务层只接收命令，不再重复校验格式。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"agrimarket/internal/model"
	"agrimarket/pkg/money"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Error 字段级校验错误
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fieldError(fe.Field(), "failed on '%s=%s' rule", fe.Tag(), fe.Param())
		}
		return fieldError(fe.Field(), "failed on '%s' rule", fe.Tag())
	}
	return err
}

const quantityPlaces = 3

// ============================================================================
// 下单
// ============================================================================

type PlaceOrderRequest struct {
	ProductID       int64           `json:"productId" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	BuyerID         int64           `json:"buyerId" validate:"required,gt=0"`
	DeliveryAddress string          `json:"deliveryAddress" validate:"required,min=3,max=512"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=wallet bank_transfer mobile_money card cash_on_delivery"`
}

type PlaceOrderCommand struct {
	ProductID       int64
	BuyerID         int64
	Quantity        decimal.Decimal
	DeliveryAddress string
	PaymentMethod   string
	RequestID       string // 幂等键，可为空
}

func PlaceOrder(req PlaceOrderRequest, requestID string) (PlaceOrderCommand, error) {
	if err := check(req); err != nil {
		return PlaceOrderCommand{}, err
	}
	if !req.Quantity.IsPositive() {
		return PlaceOrderCommand{}, fieldError("quantity", "must be greater than 0")
	}
	if !req.Quantity.Equal(req.Quantity.Round(quantityPlaces)) {
		return PlaceOrderCommand{}, fieldError("quantity", "at most %d decimal places", quantityPlaces)
	}
	requestID = strings.TrimSpace(requestID)
	if len(requestID) > 64 {
		return PlaceOrderCommand{}, fieldError("Idempotency-Key", "at most 64 characters")
	}
	return PlaceOrderCommand{
		ProductID:       req.ProductID,
		BuyerID:         req.BuyerID,
		Quantity:        req.Quantity,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		PaymentMethod:   req.PaymentMethod,
		RequestID:       requestID,
	}, nil
}

// ============================================================================
// 订单状态迁移
// ============================================================================

type TransitionRequest struct {
	Status             string `json:"status" validate:"required"`
	CancellationReason string `json:"cancellationReason" validate:"max=512"`
}

type TransitionCommand struct {
	OrderID            int64
	Target             string
	CancellationReason string
}

// Transition 只校验目标状态是不是已知状态；能否迁移由状态机判断
func Transition(orderID int64, req TransitionRequest) (TransitionCommand, error) {
	if orderID <= 0 {
		return TransitionCommand{}, fieldError("id", "must be a positive integer")
	}
	if err := check(req); err != nil {
		return TransitionCommand{}, err
	}
	if !model.IsOrderStatus(req.Status) {
		return TransitionCommand{}, fieldError("status", "unknown order status %q", req.Status)
	}
	return TransitionCommand{
		OrderID:            orderID,
		Target:             req.Status,
		CancellationReason: strings.TrimSpace(req.CancellationReason),
	}, nil
}

// ============================================================================
// 账本
// ============================================================================

type LedgerRequest struct {
	UserID           int64           `json:"userId" validate:"required,gt=0"`
	Type             string          `json:"type" validate:"required,oneof=deposit withdrawal escrow_hold escrow_release escrow_refund purchase refund payout fee bonus other"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentReference string          `json:"paymentReference" validate:"omitempty,max=64"`
	Description      string          `json:"description" validate:"max=256"`
}

type LedgerCommand struct {
	UserID           int64
	Type             string
	Amount           decimal.Decimal
	Currency         string
	PaymentReference string
	Description      string
}

func Ledger(req LedgerRequest) (LedgerCommand, error) {
	if err := check(req); err != nil {
		return LedgerCommand{}, err
	}
	if !req.Amount.IsPositive() {
		return LedgerCommand{}, fieldError("amount", "must be greater than 0")
	}
	if !money.HasCents(req.Amount) {
		return LedgerCommand{}, fieldError("amount", "at most %d decimal places", money.Places)
	}
	return LedgerCommand{
		UserID:           req.UserID,
		Type:             req.Type,
		Amount:           req.Amount,
		Currency:         strings.ToUpper(req.Currency),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		Description:      req.Description,
	}, nil
}

// ============================================================================
// 分页与路径参数
// ============================================================================

type Page struct {
	Page     int
	PageSize int
}

// Pagination 空值取默认，page_size 超过上限时截断到上限
func Pagination(page, pageSize string, defaultSize, maxSize int) (Page, error) {
	p := Page{Page: 1, PageSize: defaultSize}
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return Page{}, fieldError("page", "must be a positive integer")
		}
		p.Page = n
	}
	if pageSize != "" {
		n, err := strconv.Atoi(pageSize)
		if err != nil || n < 1 {
			return Page{}, fieldError("page_size", "must be a positive integer")
		}
		p.PageSize = n
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p, nil
}

// ID 解析路径里的数字 ID
func ID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fieldError(field, "must be a positive integer")
	}
	return id, nil
}
