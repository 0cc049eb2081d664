package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	"github.com/davidrenteria/boltbridge-backend/pkg/types"
)

// Cart is both the long-lived user-editable cart (ParentCartID nil) and the
// immutable snapshot cloned from it at token creation (ParentCartID set).
// IsActive doubles as the materialization lock on parents: it flips to false
// exactly once at the start of a successful order creation.
type Cart struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ParentCartID        *uuid.UUID          `gorm:"column:parent_cart_id;type:uuid;index"`
	LastSnapshotID      *uuid.UUID          `gorm:"column:last_snapshot_id;type:uuid"`
	IsActive            bool                `gorm:"column:is_active;not null;default:true"`
	Currency            enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	ReservedOrderNumber string              `gorm:"column:reserved_order_number"`
	BillingAddress      *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json"`
	ShippingAddress     *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippingLine        *types.ShippingLine `gorm:"column:shipping_line;type:jsonb;serializer:json"`
	SubtotalCents       int                 `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountsCents      int                 `gorm:"column:discounts_cents;not null;default:0"`
	TaxCents            int                 `gorm:"column:tax_cents;not null;default:0"`
	TotalCents          int                 `gorm:"column:total_cents;not null;default:0"`
	ExpiresAt           *time.Time          `gorm:"column:expires_at"`
	Items               []CartItem          `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Discounts           []CartDiscount      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSnapshot reports whether this cart row is an immutable snapshot.
func (c Cart) IsSnapshot() bool {
	return c.ParentCartID != nil
}
