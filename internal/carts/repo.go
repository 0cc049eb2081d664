package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a carts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Discounts").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindSnapshotsByParent(ctx context.Context, parentID uuid.UUID) ([]models.Cart, error) {
	var snapshots []models.Cart
	err := r.db.WithContext(ctx).
		Where("parent_cart_id = ?", parentID).
		Order("created_at DESC").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repository) Update(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error
}

func (r *repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ReplaceDiscounts(ctx context.Context, cartID uuid.UUID, discounts []models.CartDiscount) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartDiscount{}).Error; err != nil {
		return err
	}
	if len(discounts) == 0 {
		return nil
	}
	for i := range discounts {
		discounts[i].CartID = cartID
	}
	return r.db.WithContext(ctx).Create(&discounts).Error
}

// TryLock atomically claims the cart for materialization. The row is only
// updated when is_active is still true, so exactly one caller wins.
func (r *repository) TryLock(ctx context.Context, cartID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND is_active = ?", cartID, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Reactivate(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("is_active", true).Error
}

func (r *repository) Deactivate(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("is_active", false).Error
}

func (r *repository) SetLastSnapshot(ctx context.Context, parentID, snapshotID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", parentID).
		Update("last_snapshot_id", snapshotID).Error
}

// CloneSnapshot writes an immutable copy of the parent cart, items and
// discounts included. The clone keeps the parent's pricing columns; the
// snapshot builder overwrites them with independently computed totals.
func (r *repository) CloneSnapshot(ctx context.Context, parent *models.Cart, expiresAt *time.Time) (*models.Cart, error) {
	snapshot := &models.Cart{
		ParentCartID:        &parent.ID,
		IsActive:            true,
		Currency:            parent.Currency,
		ReservedOrderNumber: parent.ReservedOrderNumber,
		BillingAddress:      parent.BillingAddress,
		ShippingAddress:     parent.ShippingAddress,
		ShippingLine:        parent.ShippingLine,
		SubtotalCents:       parent.SubtotalCents,
		DiscountsCents:      parent.DiscountsCents,
		TaxCents:            parent.TaxCents,
		TotalCents:          parent.TotalCents,
		ExpiresAt:           expiresAt,
	}
	for _, item := range parent.Items {
		snapshot.Items = append(snapshot.Items, models.CartItem{
			ProductRef:     item.ProductRef,
			SKU:            item.SKU,
			Name:           item.Name,
			Description:    item.Description,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
			Type:           item.Type,
		})
	}
	for _, discount := range parent.Discounts {
		snapshot.Discounts = append(snapshot.Discounts, models.CartDiscount{
			Description: discount.Description,
			AmountCents: discount.AmountCents,
			Reference:   discount.Reference,
		})
	}
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *repository) DeactivateExpiredSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("parent_cart_id IS NOT NULL AND is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, cutoff).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
