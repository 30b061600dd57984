package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleTrader = "trader"
	RoleAdmin  = "admin"
)

// User 平台用户，订单核心只读取身份、角色和两个余额字段
// 余额只能通过账本操作修改，任何时候都不能小于 0
type User struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string          `gorm:"type:varchar(128)" json:"name"`
	Role          string          `gorm:"type:varchar(16);not null" json:"role"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"walletBalance"`
	EscrowBalance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"escrowBalance"`
	Version       int             `gorm:"not null;default:0" json:"-"` // 乐观锁版本号
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
