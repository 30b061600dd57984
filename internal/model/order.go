package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending        = "pending"
	OrderStatusAccepted       = "accepted"
	OrderStatusRejected       = "rejected"
	OrderStatusPaymentPending = "payment_pending"
	OrderStatusPaid           = "paid"
	OrderStatusShipped        = "shipped"
	OrderStatusDelivered      = "delivered"
	OrderStatusDisputed       = "disputed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusRefunded       = "refunded"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// ValidStatusTransitions 订单状态机，所有副作用执行前都必须先查这张表
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:        {OrderStatusAccepted, OrderStatusRejected, OrderStatusCancelled, OrderStatusPaymentPending},
	OrderStatusAccepted:       {OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusPaymentPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusShipped, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDelivered:      {OrderStatusDisputed},
	OrderStatusDisputed:       {OrderStatusRefunded},
}

// OrderStatuses 全部合法的订单状态值
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusRejected,
	OrderStatusPaymentPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusDisputed,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

func IsOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus 终态没有任何出边
func IsTerminalOrderStatus(status string) bool {
	return len(ValidStatusTransitions[status]) == 0
}

const (
	PaymentMethodWallet         = "wallet"
	PaymentMethodBankTransfer   = "bank_transfer"
	PaymentMethodMobileMoney    = "mobile_money"
	PaymentMethodCard           = "card"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Order 买家对单个商品的订单
// 单价在下单时快照，之后商品改价不影响订单；总价和数量下单后不再变化
type Order struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo            string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderNo"`
	RequestID          *string         `gorm:"type:varchar(64);uniqueIndex" json:"requestId,omitempty"`
	BuyerID            int64           `gorm:"index;not null" json:"buyerId"`
	SellerID           int64           `gorm:"index;not null" json:"sellerId"`
	ProductID          int64           `gorm:"index;not null" json:"productId"`
	Quantity           decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unitPrice"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"totalPrice"`
	Status             string          `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus      string          `gorm:"type:varchar(20);not null" json:"paymentStatus"`
	PaymentMethod      string          `gorm:"type:varchar(32);not null" json:"paymentMethod"`
	DeliveryAddress    string          `gorm:"type:varchar(512);not null" json:"deliveryAddress"`
	CancellationReason string          `gorm:"type:varchar(512)" json:"cancellationReason,omitempty"`
	PaymentDueAt       *time.Time      `gorm:"index" json:"paymentDueAt,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`

	Product      *Product      `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Buyer        *User         `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:OrderID" json:"transactions,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderChanges 状态迁移时随状态一起写入的字段
type OrderChanges struct {
	PaymentStatus      string
	CancellationReason string
	PaymentDueAt       *time.Time
}
