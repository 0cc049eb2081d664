package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

// CartItem is a priced line on a cart or snapshot.
type CartItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID      `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductRef     string         `gorm:"column:product_ref;not null"`
	SKU            string         `gorm:"column:sku;not null"`
	Name           string         `gorm:"column:name;not null"`
	Description    string         `gorm:"column:description"`
	ImageURL       string         `gorm:"column:image_url"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Quantity       int            `gorm:"column:quantity;not null"`
	LineTotalCents int            `gorm:"column:line_total_cents;not null"`
	Type           enums.ItemType `gorm:"column:type;not null;default:'physical'"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
