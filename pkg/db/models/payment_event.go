package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

// PaymentEvent is an append-only record of processor-side activity observed
// for an order (authorizations, captures, voids, rejections).
type PaymentEvent struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Type        enums.PaymentEventType `gorm:"column:type;not null"`
	Reference   string                 `gorm:"column:reference;not null"`
	AmountCents int                    `gorm:"column:amount_cents;not null;default:0"`
	Detail      string                 `gorm:"column:detail"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
