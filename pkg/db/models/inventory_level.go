package models

import (
	"time"
)

// InventoryLevel is the minimal stock record consulted by the availability
// check before materializing an order.
type InventoryLevel struct {
	ProductRef        string    `gorm:"column:product_ref;primaryKey"`
	AvailableQty      int       `gorm:"column:available_qty;not null;default:0"`
	BackordersAllowed bool      `gorm:"column:backorders_allowed;not null;default:false"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
