package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeEscrowHold    = "escrow_hold"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
	TransactionTypePurchase      = "purchase"
	TransactionTypeRefund        = "refund"
	TransactionTypePayout        = "payout"
	TransactionTypeFee           = "fee"
	TransactionTypeBonus         = "bonus"
	TransactionTypeOther         = "other"
)

var TransactionTypes = []string{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeEscrowHold,
	TransactionTypeEscrowRelease,
	TransactionTypeEscrowRefund,
	TransactionTypePurchase,
	TransactionTypeRefund,
	TransactionTypePayout,
	TransactionTypeFee,
	TransactionTypeBonus,
	TransactionTypeOther,
}

const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
	TransactionStatusReversed   = "reversed"
)

// IsTerminalTransactionStatus 终态流水不允许再修改，只能追加冲正流水
func IsTerminalTransactionStatus(status string) bool {
	switch status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusReversed:
		return true
	}
	return false
}

// ============================================================================
// 账户流水实体
// ============================================================================

// Transaction 账本流水
//
// 流水表只追加：
// 1. 终态流水不修改、不删除
// 2. 订单相关流水必须带 OrderID，充值/提现为空
// 3. PaymentReference 存在时全局唯一
type Transaction struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(8);not null" json:"currency"`
	Type             string          `gorm:"type:varchar(20);index;not null" json:"type"`
	Status           string          `gorm:"type:varchar(20);not null" json:"status"`
	UserID           int64           `gorm:"index;not null" json:"userId"`
	OrderID          *int64          `gorm:"index" json:"orderId,omitempty"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
	PaymentReference *string         `gorm:"type:varchar(64);uniqueIndex" json:"paymentReference,omitempty"`
	Description      string          `gorm:"type:varchar(256)" json:"description,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
