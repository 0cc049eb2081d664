package models

import (
	"time"

	"github.com/google/uuid"
)

// CartDiscount is a discount line applied to a cart or snapshot.
type CartDiscount struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID      uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	Description string    `gorm:"column:description;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	Reference   string    `gorm:"column:reference"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
