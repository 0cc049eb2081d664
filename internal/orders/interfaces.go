package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreatePayment(ctx context.Context, paymentRecord *models.OrderPayment) (*models.OrderPayment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindDeferredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	FindInventoryLevels(ctx context.Context, productRefs []string) (map[string]models.InventoryLevel, error)
}
