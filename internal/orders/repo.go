package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreatePayment(ctx context.Context, paymentRecord *models.OrderPayment) (*models.OrderPayment, error) {
	if err := r.db.WithContext(ctx).Create(paymentRecord).Error; err != nil {
		return nil, err
	}
	return paymentRecord, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Preload("Invoices").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Preload("Invoices").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Preload("Invoices").
		Where("snapshot_id = ?", snapshotID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	var paymentRecord models.OrderPayment
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&paymentRecord).Error
	if err != nil {
		return nil, err
	}
	order, err := r.FindByID(ctx, paymentRecord.OrderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindDeferredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Where("state = ? AND updated_at < ?", enums.OrderStateDeferred, cutoff).
		Order("updated_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindInventoryLevels(ctx context.Context, productRefs []string) (map[string]models.InventoryLevel, error) {
	levels := make(map[string]models.InventoryLevel, len(productRefs))
	if len(productRefs) == 0 {
		return levels, nil
	}
	var rows []models.InventoryLevel
	err := r.db.WithContext(ctx).
		Where("product_ref IN ?", productRefs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		levels[row.ProductRef] = row
	}
	return levels, nil
}
