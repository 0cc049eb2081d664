package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
)

// Repository defines persistence operations for carts and their immutable
// snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindSnapshotsByParent(ctx context.Context, parentID uuid.UUID) ([]models.Cart, error)
	Update(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	ReplaceDiscounts(ctx context.Context, cartID uuid.UUID, discounts []models.CartDiscount) error
	TryLock(ctx context.Context, cartID uuid.UUID) (bool, error)
	Reactivate(ctx context.Context, cartID uuid.UUID) error
	Deactivate(ctx context.Context, cartID uuid.UUID) error
	SetLastSnapshot(ctx context.Context, parentID, snapshotID uuid.UUID) error
	CloneSnapshot(ctx context.Context, parent *models.Cart, expiresAt *time.Time) (*models.Cart, error)
	DeactivateExpiredSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}
