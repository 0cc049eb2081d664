package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

// Order is the durable order materialized from an immutable cart snapshot.
type Order struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    string           `gorm:"column:order_number;not null;uniqueIndex"`
	CartID         uuid.UUID        `gorm:"column:cart_id;type:uuid;not null;index"`
	SnapshotID     uuid.UUID        `gorm:"column:snapshot_id;type:uuid;not null;uniqueIndex"`
	State          enums.OrderState `gorm:"column:state;not null;default:'new'"`
	Currency       enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	SubtotalCents  int              `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountsCents int              `gorm:"column:discounts_cents;not null;default:0"`
	TaxCents       int              `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents  int              `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents     int              `gorm:"column:total_cents;not null;default:0"`
	Comments       string           `gorm:"column:comments"`
	Payment        *OrderPayment    `gorm:"foreignKey:OrderID"`
	Invoices       []Invoice        `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
