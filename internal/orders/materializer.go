package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/internal/carts"
	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/types"
)

// displayIDSeparator joins the reserved order number and snapshot id in the
// display id submitted to the processor.
const displayIDSeparator = "|"

// BuildDisplayID renders the display id for a snapshot.
func BuildDisplayID(orderNumber string, snapshotID uuid.UUID) string {
	return orderNumber + displayIDSeparator + snapshotID.String()
}

// ParseDisplayID splits a display id back into its order number and optional
// snapshot id. Legacy display ids carry only the order number.
func ParseDisplayID(displayID string) (string, *uuid.UUID) {
	orderNumber, rest, found := strings.Cut(displayID, displayIDSeparator)
	if !found {
		return strings.TrimSpace(displayID), nil
	}
	id, err := uuid.Parse(strings.TrimSpace(rest))
	if err != nil {
		return strings.TrimSpace(orderNumber), nil
	}
	return strings.TrimSpace(orderNumber), &id
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RateProvider lists the shipping rates currently offered for a cart.
type RateProvider interface {
	RatesFor(ctx context.Context, cart *models.Cart) ([]types.ShippingLine, error)
}

// Materializer turns an immutable cart snapshot into a durable order when the
// processor reports a transaction for it.
type Materializer struct {
	carts       carts.Repository
	orders      Repository
	payment     *payment.Service
	rates       RateProvider
	tx          txRunner
	logger      *logger.Logger
	autoCapture bool
}

// MaterializerParams collects the dependencies for NewMaterializer. Rates is
// optional; without it the snapshot's stored shipping line is used as-is.
// AutoCapture marks every created payment for capture on authorization.
type MaterializerParams struct {
	Carts       carts.Repository
	Orders      Repository
	Payment     *payment.Service
	Rates       RateProvider
	Tx          txRunner
	Logger      *logger.Logger
	AutoCapture bool
}

// NewMaterializer builds the order materializer.
func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payment == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Materializer{
		carts:       params.Carts,
		orders:      params.Orders,
		payment:     params.Payment,
		rates:       params.Rates,
		tx:          params.Tx,
		logger:      params.Logger,
		autoCapture: params.AutoCapture,
	}, nil
}

// Materialize creates the order for the snapshot referenced by the
// transaction. The parent cart is claimed with an atomic flip of is_active so
// concurrent deliveries for the same cart produce exactly one order; losers
// get DuplicatedTransitionError. Once the claim succeeds, every failure path
// releases it again, even when the request context has already expired.
func (m *Materializer) Materialize(ctx context.Context, txn *bolt.Transaction, expectedCartID *uuid.UUID) (order *models.Order, err error) {
	snapshot, err := m.resolveSnapshot(ctx, txn)
	if err != nil {
		return nil, err
	}
	if !snapshot.IsActive {
		if existing, ferr := m.orders.FindBySnapshotID(ctx, snapshot.ID); ferr == nil {
			return existing, &DuplicatedTransitionError{Reference: txn.Reference}
		}
		return nil, &DuplicatedTransitionError{Reference: txn.Reference}
	}
	if expectedCartID != nil && (snapshot.ParentCartID == nil || *snapshot.ParentCartID != *expectedCartID) {
		return nil, &OrderCreationError{Kind: KindCartMismatch, Reference: txn.Reference}
	}
	if snapshot.ExpiresAt != nil && snapshot.ExpiresAt.Before(time.Now().UTC()) {
		return nil, &OrderCreationError{Kind: KindSnapshotExpired, Reference: txn.Reference}
	}
	if err := m.checkAvailability(ctx, txn.Reference, snapshot.Items); err != nil {
		return nil, err
	}

	status, err := enums.ParseTransactionStatus(txn.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown transaction status %q", txn.Status))
	}

	parentID := *snapshot.ParentCartID
	locked, err := m.carts.TryLock(ctx, parentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming cart")
	}
	if !locked {
		return nil, &DuplicatedTransitionError{Reference: txn.Reference}
	}
	defer func() {
		if err == nil {
			return
		}
		releaseCtx := context.WithoutCancel(ctx)
		if rerr := m.carts.Reactivate(releaseCtx, parentID); rerr != nil {
			m.logger.Error(releaseCtx, "releasing cart claim after failed materialization", rerr)
		}
	}()

	shippingLine := m.resolveShippingLine(ctx, snapshot)

	orderNumber, existing, err := m.resolveOrderNumber(ctx, snapshot, txn.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, &DuplicatedTransitionError{Reference: txn.Reference}
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := m.orders.WithTx(tx)
		cartsRepo := m.carts.WithTx(tx)

		shippingCents := 0
		taxCents := snapshot.TaxCents
		if shippingLine != nil {
			shippingCents = shippingLine.CostCents
			taxCents += shippingLine.TaxCents
		}

		created, cerr := ordersRepo.Create(ctx, &models.Order{
			OrderNumber:    orderNumber,
			CartID:         parentID,
			SnapshotID:     snapshot.ID,
			State:          enums.OrderStateNew,
			Currency:       snapshot.Currency,
			SubtotalCents:  snapshot.SubtotalCents,
			DiscountsCents: snapshot.DiscountsCents,
			TaxCents:       taxCents,
			ShippingCents:  shippingCents,
			TotalCents:     snapshot.TotalCents,
		})
		if cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, cerr, "creating order")
		}

		paymentRecord, perr := ordersRepo.CreatePayment(ctx, &models.OrderPayment{
			OrderID:     created.ID,
			Reference:   txn.Reference,
			Status:      status,
			AmountCents: int(txn.Amount.Amount),
			AutoCapture: m.autoCapture,
		})
		if perr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, perr, "creating order payment")
		}
		created.Payment = paymentRecord

		if derr := cartsRepo.Deactivate(ctx, snapshot.ID); derr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, derr, "consuming snapshot")
		}
		if serr := cartsRepo.SetLastSnapshot(ctx, parentID, snapshot.ID); serr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, serr, "recording last snapshot")
		}

		if aerr := m.payment.ApplyStatusTx(ctx, tx, created, paymentRecord, status, nil); aerr != nil {
			return aerr
		}

		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := m.logger.WithOrderNumber(m.logger.WithReference(ctx, txn.Reference), order.OrderNumber)
	m.logger.Info(logCtx, "order materialized from snapshot")
	return order, nil
}

func (m *Materializer) resolveSnapshot(ctx context.Context, txn *bolt.Transaction) (*models.Cart, error) {
	if txn == nil || txn.Order == nil || txn.Order.Cart.OrderReference == "" {
		reference := ""
		if txn != nil {
			reference = txn.Reference
		}
		return nil, &OrderCreationError{Kind: KindSnapshotMissing, Reference: reference, Detail: "transaction carries no cart reference"}
	}
	snapshotID, err := uuid.Parse(txn.Order.Cart.OrderReference)
	if err != nil {
		return nil, &OrderCreationError{Kind: KindSnapshotMissing, Reference: txn.Reference, Detail: "cart reference is not a snapshot id"}
	}
	snapshot, err := m.carts.FindByID(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &OrderCreationError{Kind: KindSnapshotMissing, Reference: txn.Reference}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading snapshot")
	}
	if !snapshot.IsSnapshot() {
		return nil, &OrderCreationError{Kind: KindCartMismatch, Reference: txn.Reference, Detail: "cart reference points at a live cart"}
	}
	return snapshot, nil
}

func (m *Materializer) checkAvailability(ctx context.Context, reference string, items []models.CartItem) error {
	if len(items) == 0 {
		return &OrderCreationError{Kind: KindItemsUnavailable, Reference: reference, Detail: "snapshot has no items"}
	}
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type == enums.ItemTypePhysical {
			refs = append(refs, item.ProductRef)
		}
	}
	levels, err := m.orders.FindInventoryLevels(ctx, refs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading inventory levels")
	}
	for _, item := range items {
		if item.Type != enums.ItemTypePhysical {
			continue
		}
		level, tracked := levels[item.ProductRef]
		if !tracked {
			continue
		}
		if level.BackordersAllowed || level.AvailableQty >= item.Quantity {
			continue
		}
		return &OrderCreationError{
			Kind:      KindItemsUnavailable,
			Reference: reference,
			Detail:    fmt.Sprintf("product %s has %d available, %d requested", item.ProductRef, level.AvailableQty, item.Quantity),
		}
	}
	return nil
}

// resolveShippingLine prefers the rate whose reference matches the snapshot's
// selection exactly. Snapshots without a structured reference fall back to
// the legacy title match. No match keeps the stored line so the order still
// reflects what the shopper was charged.
func (m *Materializer) resolveShippingLine(ctx context.Context, snapshot *models.Cart) *types.ShippingLine {
	stored := snapshot.ShippingLine
	if stored == nil || m.rates == nil {
		return stored
	}
	rates, err := m.rates.RatesFor(ctx, snapshot)
	if err != nil {
		m.logger.Warn(ctx, "shipping rates unavailable, keeping snapshot shipping line")
		return stored
	}
	if stored.Reference != "" {
		for i := range rates {
			if rates[i].Reference == stored.Reference {
				return &rates[i]
			}
		}
	}
	for i := range rates {
		if rates[i].Title() == stored.Title() {
			return &rates[i]
		}
	}
	return stored
}

// resolveOrderNumber honors the number reserved at token creation. A prior
// order already holding that number is the same materialization only when it
// carries the same payment reference; anything else gets a fresh number.
func (m *Materializer) resolveOrderNumber(ctx context.Context, snapshot *models.Cart, reference string) (string, *models.Order, error) {
	reserved := strings.TrimSpace(snapshot.ReservedOrderNumber)
	if reserved == "" {
		return NewOrderNumber(), nil, nil
	}
	existing, err := m.orders.FindByOrderNumber(ctx, reserved)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reserved, nil, nil
		}
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking reserved order number")
	}
	if existing.Payment != nil && existing.Payment.Reference == reference {
		return reserved, existing, nil
	}
	return NewOrderNumber(), nil, nil
}

// NewOrderNumber mints a fresh order number.
func NewOrderNumber() string {
	return "BB-" + strings.ToUpper(uuid.NewString()[:8])
}
