package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

// OrderPayment records the processor transaction attached to an order,
// including the last status observed from webhooks. One per order.
type OrderPayment struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Reference             string                  `gorm:"column:reference;not null;uniqueIndex"`
	MerchantTransactionID string                  `gorm:"column:merchant_transaction_id"`
	Status                enums.TransactionStatus `gorm:"column:status;not null"`
	AmountCents           int                     `gorm:"column:amount_cents;not null"`
	AutoCapture           bool                    `gorm:"column:auto_capture;not null;default:false"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
