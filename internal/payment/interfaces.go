package payment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

// Repository defines the persistence surface the state machine needs to apply
// a status change and its side effects.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpdateOrderState(ctx context.Context, orderID uuid.UUID, state enums.OrderState) error
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	FindInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoiceID uuid.UUID, updates map[string]any) error
	CreatePaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}
