package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is a billing record against an order. The state machine creates at
// most one invoice per order through the webhook path.
type Invoice struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents int        `gorm:"column:amount_cents;not null"`
	Paid        bool       `gorm:"column:paid;not null;default:false"`
	Captured    bool       `gorm:"column:captured;not null;default:false"`
	Reference   string     `gorm:"column:reference"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	CapturedAt  *time.Time `gorm:"column:captured_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
