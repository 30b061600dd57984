package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductStatusAvailable = "available"
	ProductStatusSoldOut   = "sold_out"
	ProductStatusInactive  = "inactive"
)

// Product 商品目录中的一条挂牌
// AvailableQuantity 和 Status 只由订单服务在下单/取消时修改
type Product struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID          int64           `gorm:"index;not null" json:"sellerId"`
	Name              string          `gorm:"type:varchar(128);not null" json:"name"`
	Unit              string          `gorm:"type:varchar(16);not null;default:kg" json:"unit"`
	PricePerUnit      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"pricePerUnit"`
	AvailableQuantity decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"availableQuantity"`
	Status            string          `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}
