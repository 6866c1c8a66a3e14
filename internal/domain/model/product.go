package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stock_quantityはtracks_inventory=trueのときだけ意味を持つ
type Product struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU             string          `gorm:"type:varchar(100);uniqueIndex" json:"sku"`
	Description     string          `gorm:"type:text" json:"description"`
	ThumbnailURL    string          `gorm:"type:varchar(500)" json:"thumbnail"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	StockQuantity   int64           `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	TracksInventory bool            `gorm:"not null;default:true" json:"tracks_inventory"`
	SoldCount       int64           `gorm:"not null;default:0" json:"sold_count"`
	IsActive        bool            `gorm:"not null;default:false" json:"is_active"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 在庫管理しない商品は常に購入可能
func (p Product) HasStockFor(qty int64) bool {
	if !p.TracksInventory {
		return true
	}
	return p.StockQuantity >= qty
}
