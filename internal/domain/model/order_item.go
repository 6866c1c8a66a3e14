package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 購入時点のスナップショット。作成後は変更しない。
// product_idは商品削除後に宙に浮くことがある。
type OrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64           `gorm:"not null;index" json:"order_id"`
	ProductID    int64           `gorm:"not null;index" json:"product_id"`
	ProductName  string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductSKU   string          `gorm:"type:varchar(100)" json:"product_sku"`
	ProductImage string          `gorm:"type:varchar(500)" json:"product_image"`
	Quantity     int64           `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Discount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)).Sub(it.Discount)
}
