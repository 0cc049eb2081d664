package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/internal/carts"
	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type cartsStub struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*models.Cart
	reactivated []uuid.UUID
	deactivated []uuid.UUID
	lastSnaps   map[uuid.UUID]uuid.UUID
}

func newCartsStub(cartRows ...*models.Cart) *cartsStub {
	s := &cartsStub{
		byID:      map[uuid.UUID]*models.Cart{},
		lastSnaps: map[uuid.UUID]uuid.UUID{},
	}
	for _, c := range cartRows {
		s.byID[c.ID] = c
	}
	return s
}

func (s *cartsStub) WithTx(tx *gorm.DB) carts.Repository { return s }

func (s *cartsStub) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	s.byID[cart.ID] = cart
	return cart, nil
}

func (s *cartsStub) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *cart
	return &copied, nil
}

func (s *cartsStub) FindSnapshotsByParent(ctx context.Context, parentID uuid.UUID) ([]models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cart
	for _, cart := range s.byID {
		if cart.ParentCartID != nil && *cart.ParentCartID == parentID {
			out = append(out, *cart)
		}
	}
	return out, nil
}

func (s *cartsStub) Update(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *cartsStub) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	return nil
}

func (s *cartsStub) ReplaceDiscounts(ctx context.Context, cartID uuid.UUID, discounts []models.CartDiscount) error {
	return nil
}

func (s *cartsStub) TryLock(ctx context.Context, cartID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.byID[cartID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if !cart.IsActive {
		return false, nil
	}
	cart.IsActive = false
	return true, nil
}

func (s *cartsStub) Reactivate(ctx context.Context, cartID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactivated = append(s.reactivated, cartID)
	if cart, ok := s.byID[cartID]; ok {
		cart.IsActive = true
	}
	return nil
}

func (s *cartsStub) Deactivate(ctx context.Context, cartID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, cartID)
	if cart, ok := s.byID[cartID]; ok {
		cart.IsActive = false
	}
	return nil
}

func (s *cartsStub) SetLastSnapshot(ctx context.Context, parentID, snapshotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSnaps[parentID] = snapshotID
	return nil
}

func (s *cartsStub) CloneSnapshot(ctx context.Context, parent *models.Cart, expiresAt *time.Time) (*models.Cart, error) {
	return nil, errors.New("not implemented")
}

func (s *cartsStub) DeactivateExpiredSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type ordersStub struct {
	mu        sync.Mutex
	byNumber  map[string]*models.Order
	levels    map[string]models.InventoryLevel
	createErr error
	created   int
}

func newOrdersStub() *ordersStub {
	return &ordersStub{
		byNumber: map[string]*models.Order{},
		levels:   map[string]models.InventoryLevel{},
	}
}

func (s *ordersStub) WithTx(tx *gorm.DB) Repository { return s }

func (s *ordersStub) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	order.ID = uuid.New()
	s.byNumber[order.OrderNumber] = order
	s.created++
	return order, nil
}

func (s *ordersStub) CreatePayment(ctx context.Context, paymentRecord *models.OrderPayment) (*models.OrderPayment, error) {
	paymentRecord.ID = uuid.New()
	return paymentRecord, nil
}

func (s *ordersStub) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.byNumber {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *ordersStub) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.byNumber[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *ordersStub) FindBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.byNumber {
		if order.SnapshotID == snapshotID {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *ordersStub) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.byNumber {
		if order.Payment != nil && order.Payment.Reference == reference {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *ordersStub) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *ordersStub) FindDeferredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (s *ordersStub) FindInventoryLevels(ctx context.Context, productRefs []string) (map[string]models.InventoryLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.InventoryLevel{}
	for _, ref := range productRefs {
		if level, ok := s.levels[ref]; ok {
			out[ref] = level
		}
	}
	return out, nil
}

type paymentRepoStub struct {
	mu     sync.Mutex
	events []*models.PaymentEvent
}

func (s *paymentRepoStub) WithTx(tx *gorm.DB) payment.Repository { return s }

func (s *paymentRepoStub) UpdateOrderState(ctx context.Context, orderID uuid.UUID, state enums.OrderState) error {
	return nil
}

func (s *paymentRepoStub) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *paymentRepoStub) FindInvoicesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Invoice, error) {
	return nil, nil
}

func (s *paymentRepoStub) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	return invoice, nil
}

func (s *paymentRepoStub) UpdateInvoice(ctx context.Context, invoiceID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *paymentRepoStub) CreatePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestMaterializer(t *testing.T, cartsRepo carts.Repository, ordersRepo Repository) *Materializer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	paymentSvc, err := payment.NewService(payment.ServiceParams{
		Repo:   &paymentRepoStub{},
		Tx:     passthroughTx{},
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	m, err := NewMaterializer(MaterializerParams{
		Carts:   cartsRepo,
		Orders:  ordersRepo,
		Payment: paymentSvc,
		Tx:      passthroughTx{},
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}
	return m
}

func snapshotFixture() (*models.Cart, *models.Cart) {
	parent := &models.Cart{
		ID:                  uuid.New(),
		IsActive:            true,
		Currency:            enums.CurrencyUSD,
		ReservedOrderNumber: "BB-1000042",
	}
	snapshot := &models.Cart{
		ID:                  uuid.New(),
		ParentCartID:        &parent.ID,
		IsActive:            true,
		Currency:            enums.CurrencyUSD,
		ReservedOrderNumber: parent.ReservedOrderNumber,
		SubtotalCents:       3500,
		TotalCents:          3500,
		Items: []models.CartItem{
			{ProductRef: "WIDGET-1", Quantity: 2, UnitPriceCents: 1000, LineTotalCents: 2000, Type: enums.ItemTypePhysical},
			{ProductRef: "WIDGET-2", Quantity: 3, UnitPriceCents: 500, LineTotalCents: 1500, Type: enums.ItemTypePhysical},
		},
	}
	return parent, snapshot
}

func transactionFor(snapshot *models.Cart, status string) *bolt.Transaction {
	return &bolt.Transaction{
		ID:        "TID-1",
		Reference: "TX-1",
		Status:    status,
		Amount:    bolt.Amount{Amount: 3500, CurrencyCode: "USD"},
		Order: &bolt.TransactionOrder{
			Cart: bolt.TransactionCart{
				OrderReference: snapshot.ID.String(),
				DisplayID:      BuildDisplayID(snapshot.ReservedOrderNumber, snapshot.ID),
			},
		},
	}
}

func TestMaterializeCreatesOrderFromSnapshot(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	order, err := m.Materialize(context.Background(), transactionFor(snapshot, "completed"), nil)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if order.OrderNumber != "BB-1000042" {
		t.Fatalf("expected reserved order number, got %q", order.OrderNumber)
	}
	if order.SnapshotID != snapshot.ID || order.CartID != parent.ID {
		t.Fatalf("order linkage wrong: %+v", order)
	}
	if order.Payment == nil || order.Payment.Reference != "TX-1" {
		t.Fatalf("payment record missing: %+v", order.Payment)
	}
	if order.State != enums.OrderStateComplete {
		t.Fatalf("expected complete state, got %s", order.State)
	}

	found := false
	for _, id := range cartsRepo.deactivated {
		if id == snapshot.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected snapshot to be consumed")
	}
	if cartsRepo.lastSnaps[parent.ID] != snapshot.ID {
		t.Fatalf("expected parent to record last snapshot")
	}
	if len(cartsRepo.reactivated) != 0 {
		t.Fatalf("parent must stay claimed on success")
	}
}

func TestMaterializeStampsAutoCaptureOnPayment(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	logg := logger.New(logger.Options{ServiceName: "test"})
	paymentSvc, err := payment.NewService(payment.ServiceParams{
		Repo:   &paymentRepoStub{},
		Tx:     passthroughTx{},
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	m, err := NewMaterializer(MaterializerParams{
		Carts:       cartsRepo,
		Orders:      ordersRepo,
		Payment:     paymentSvc,
		Tx:          passthroughTx{},
		Logger:      logg,
		AutoCapture: true,
	})
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}

	order, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if order.Payment == nil || !order.Payment.AutoCapture {
		t.Fatalf("expected payment marked for auto capture, got %+v", order.Payment)
	}
}

func TestMaterializeDefaultsToManualCapture(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	order, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if order.Payment == nil || order.Payment.AutoCapture {
		t.Fatalf("expected manual capture payment, got %+v", order.Payment)
	}
}

func TestMaterializeMissingSnapshot(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent)
	m := newTestMaterializer(t, cartsRepo, newOrdersStub())

	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	var creation *OrderCreationError
	if !errors.As(err, &creation) || creation.Kind != KindSnapshotMissing {
		t.Fatalf("expected snapshot_missing, got %v", err)
	}
}

func TestMaterializeCartMismatch(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	m := newTestMaterializer(t, cartsRepo, newOrdersStub())

	other := uuid.New()
	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), &other)
	var creation *OrderCreationError
	if !errors.As(err, &creation) || creation.Kind != KindCartMismatch {
		t.Fatalf("expected cart_mismatch, got %v", err)
	}
}

func TestMaterializeExpiredSnapshot(t *testing.T) {
	parent, snapshot := snapshotFixture()
	past := time.Now().Add(-time.Hour)
	snapshot.ExpiresAt = &past
	cartsRepo := newCartsStub(parent, snapshot)
	m := newTestMaterializer(t, cartsRepo, newOrdersStub())

	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	var creation *OrderCreationError
	if !errors.As(err, &creation) || creation.Kind != KindSnapshotExpired {
		t.Fatalf("expected snapshot_expired, got %v", err)
	}
}

func TestMaterializeUnavailableItems(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	ordersRepo.levels["WIDGET-1"] = models.InventoryLevel{ProductRef: "WIDGET-1", AvailableQty: 1}
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	var creation *OrderCreationError
	if !errors.As(err, &creation) || creation.Kind != KindItemsUnavailable {
		t.Fatalf("expected items_unavailable, got %v", err)
	}
}

func TestMaterializeBackordersBypassStockCheck(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	ordersRepo.levels["WIDGET-1"] = models.InventoryLevel{ProductRef: "WIDGET-1", AvailableQty: 0, BackordersAllowed: true}
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	if _, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil); err != nil {
		t.Fatalf("expected backordered item to pass, got %v", err)
	}
}

func TestMaterializeClaimedCartReturnsDuplicated(t *testing.T) {
	parent, snapshot := snapshotFixture()
	parent.IsActive = false
	cartsRepo := newCartsStub(parent, snapshot)
	m := newTestMaterializer(t, cartsRepo, newOrdersStub())

	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	var duplicated *DuplicatedTransitionError
	if !errors.As(err, &duplicated) {
		t.Fatalf("expected DuplicatedTransitionError, got %v", err)
	}
	if len(cartsRepo.reactivated) != 0 {
		t.Fatalf("loser must not release a claim it never took")
	}
}

func TestMaterializeConsumedSnapshotReturnsDuplicatedWithOrder(t *testing.T) {
	parent, snapshot := snapshotFixture()
	snapshot.IsActive = false
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	existing := &models.Order{ID: uuid.New(), OrderNumber: "BB-1000042", SnapshotID: snapshot.ID}
	ordersRepo.byNumber[existing.OrderNumber] = existing
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	order, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	var duplicated *DuplicatedTransitionError
	if !errors.As(err, &duplicated) {
		t.Fatalf("expected DuplicatedTransitionError, got %v", err)
	}
	if order == nil || order.ID != existing.ID {
		t.Fatalf("expected existing order alongside the error")
	}
}

func TestMaterializeReactivatesParentOnFailure(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	ordersRepo.createErr = errors.New("insert failed")
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	_, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	if err == nil {
		t.Fatal("expected materialization to fail")
	}
	if len(cartsRepo.reactivated) != 1 || cartsRepo.reactivated[0] != parent.ID {
		t.Fatalf("expected parent cart to be reactivated, got %v", cartsRepo.reactivated)
	}
}

func TestConcurrentMaterializeCreatesOneOrder(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
		}(i)
	}
	wg.Wait()

	var wins, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		default:
			var duplicated *DuplicatedTransitionError
			if errors.As(err, &duplicated) {
				duplicates++
			} else {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if duplicates != attempts-1 {
		t.Fatalf("expected %d duplicates, got %d", attempts-1, duplicates)
	}
	if ordersRepo.created != 1 {
		t.Fatalf("expected one order created, got %d", ordersRepo.created)
	}
}

func TestResolveOrderNumberReusesOnlyForSamePaymentReference(t *testing.T) {
	parent, snapshot := snapshotFixture()
	cartsRepo := newCartsStub(parent, snapshot)
	ordersRepo := newOrdersStub()
	ordersRepo.byNumber["BB-1000042"] = &models.Order{
		ID:          uuid.New(),
		OrderNumber: "BB-1000042",
		SnapshotID:  uuid.New(),
		Payment:     &models.OrderPayment{Reference: "TX-OTHER"},
	}
	m := newTestMaterializer(t, cartsRepo, ordersRepo)

	order, err := m.Materialize(context.Background(), transactionFor(snapshot, "authorized"), nil)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if order.OrderNumber == "BB-1000042" {
		t.Fatalf("expected a fresh order number when the reserved one belongs to another payment")
	}
}

func TestParseDisplayIDRoundTrip(t *testing.T) {
	snapshotID := uuid.New()
	displayID := BuildDisplayID("BB-1000042", snapshotID)

	orderNumber, parsed := ParseDisplayID(displayID)
	if orderNumber != "BB-1000042" {
		t.Fatalf("unexpected order number %q", orderNumber)
	}
	if parsed == nil || *parsed != snapshotID {
		t.Fatalf("snapshot id not preserved")
	}

	orderNumber, parsed = ParseDisplayID("100000077")
	if orderNumber != "100000077" || parsed != nil {
		t.Fatalf("legacy display id mishandled: %q %v", orderNumber, parsed)
	}
}
