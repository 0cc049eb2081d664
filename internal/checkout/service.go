package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/internal/carts"
	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/pkg/auth"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type processorClient interface {
	FetchTransaction(ctx context.Context, reference string) (*bolt.Transaction, error)
	CreateOrder(ctx context.Context, payload bolt.CartPayload) (*bolt.OrderToken, error)
}

type tokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	OrderTokenKey(contentHash string) string
}

// TokenResult is the checkout session handed back to the storefront.
type TokenResult struct {
	OrderToken   string
	SessionToken string
	SnapshotID   uuid.UUID
	OrderNumber  string
}

// SaveResult is the outcome of the browser's save call.
type SaveResult struct {
	Order            *models.Order
	AlreadyProcessed bool
}

// Service drives checkout: it snapshots the cart, submits it to the
// processor for an order token, and handles the browser's save call.
type Service struct {
	carts        carts.Repository
	orders       orders.Repository
	materializer *orders.Materializer
	builder      *SnapshotBuilder
	availability *AvailabilityChecker
	processor    processorClient
	cache        tokenCache
	jwtCfg       config.JWTConfig
	checkoutCfg  config.CheckoutConfig
	logger       *logger.Logger
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Carts        carts.Repository
	Orders       orders.Repository
	Materializer *orders.Materializer
	Builder      *SnapshotBuilder
	Availability *AvailabilityChecker
	Processor    processorClient
	Cache        tokenCache
	JWTConfig    config.JWTConfig
	Checkout     config.CheckoutConfig
	Logger       *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("materializer required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("snapshot builder required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("token cache required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		carts:        params.Carts,
		orders:       params.Orders,
		materializer: params.Materializer,
		builder:      params.Builder,
		availability: params.Availability,
		processor:    params.Processor,
		cache:        params.Cache,
		jwtCfg:       params.JWTConfig,
		checkoutCfg:  params.Checkout,
		logger:       params.Logger,
	}, nil
}

// CreateToken snapshots the cart and exchanges it for a processor order
// token. Stale snapshots of the same cart are retired first so the snapshot
// created here is the only live one. Identical cart contents within the cache
// TTL reuse the previously issued order token.
func (s *Service) CreateToken(ctx context.Context, cartID uuid.UUID, mode enums.CheckoutMode) (*TokenResult, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart.IsSnapshot() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout must start from a live cart")
	}
	if !cart.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is locked by an in-flight order")
	}
	if err := s.availability.Check(cart); err != nil {
		return nil, err
	}

	if err := s.retireStaleSnapshots(ctx, cart.ID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cart.ReservedOrderNumber) == "" {
		cart.ReservedOrderNumber = orders.NewOrderNumber()
		if err := s.carts.Update(ctx, cart.ID, map[string]any{"reserved_order_number": cart.ReservedOrderNumber}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving order number")
		}
	}

	expiresAt := time.Now().UTC().Add(s.checkoutCfg.SnapshotTTL)
	snapshot, err := s.carts.CloneSnapshot(ctx, cart, &expiresAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cloning cart snapshot")
	}

	built, err := s.builder.Build(ctx, snapshot, mode)
	if err != nil {
		return nil, err
	}
	built.Payload.DisplayID = orders.BuildDisplayID(cart.ReservedOrderNumber, snapshot.ID)

	orderToken, err := s.orderToken(ctx, built.Payload)
	if err != nil {
		return nil, err
	}

	sessionToken, err := auth.MintCheckoutToken(s.jwtCfg, time.Now().UTC(), auth.CheckoutTokenPayload{
		CartID:   cart.ID,
		Currency: cart.Currency.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting checkout session token")
	}

	logCtx := s.logger.WithCartID(ctx, cart.ID.String())
	s.logger.Info(logCtx, "checkout token created")

	return &TokenResult{
		OrderToken:   orderToken,
		SessionToken: sessionToken,
		SnapshotID:   snapshot.ID,
		OrderNumber:  cart.ReservedOrderNumber,
	}, nil
}

// Save handles the browser's post-payment call. The transaction is fetched
// from the processor rather than trusted from the request, and the cart the
// session token was minted for must own the snapshot being materialized.
func (s *Service) Save(ctx context.Context, reference string, cartID uuid.UUID, comments string) (*SaveResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	txn, err := s.processor.FetchTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	order, err := s.materializer.Materialize(ctx, txn, &cartID)
	if err != nil {
		var duplicated *orders.DuplicatedTransitionError
		if errors.As(err, &duplicated) {
			if order == nil {
				order, err = s.orders.FindByPaymentReference(ctx, reference)
				if err != nil {
					return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already being processed")
				}
			}
			return &SaveResult{Order: order, AlreadyProcessed: true}, nil
		}
		return nil, err
	}

	if strings.TrimSpace(comments) != "" {
		if uerr := s.orders.Update(ctx, order.ID, map[string]any{"comments": comments}); uerr != nil {
			s.logger.Error(ctx, "attaching order comments", uerr)
		} else {
			order.Comments = comments
		}
	}

	return &SaveResult{Order: order}, nil
}

// retireStaleSnapshots deactivates every live snapshot of the cart so a new
// submission never races an abandoned one.
func (s *Service) retireStaleSnapshots(ctx context.Context, parentID uuid.UUID) error {
	snapshots, err := s.carts.FindSnapshotsByParent(ctx, parentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing cart snapshots")
	}
	for _, snapshot := range snapshots {
		if !snapshot.IsActive {
			continue
		}
		if err := s.carts.Deactivate(ctx, snapshot.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retiring stale snapshot")
		}
	}
	return nil
}

// orderToken returns the processor token for the payload, reusing a cached
// token when the cart contents have not changed since the last submission.
func (s *Service) orderToken(ctx context.Context, payload bolt.CartPayload) (string, error) {
	hash, err := payloadHash(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing cart payload")
	}
	key := s.cache.OrderTokenKey(hash)

	cached, err := s.cache.Get(ctx, key)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, redislib.Nil) {
		s.logger.Warn(ctx, "order token cache read failed, creating a fresh token")
	}

	token, err := s.processor.CreateOrder(ctx, payload)
	if err != nil {
		return "", err
	}
	if serr := s.cache.Set(ctx, key, token.Token, s.checkoutCfg.TokenCacheTTL); serr != nil {
		s.logger.Warn(ctx, "order token cache write failed")
	}
	return token.Token, nil
}

// payloadHash fingerprints everything about the payload except the snapshot
// identity, so re-snapshotting unchanged cart contents hits the cache.
func payloadHash(payload bolt.CartPayload) (string, error) {
	clone := payload
	clone.OrderReference = ""
	clone.DisplayID = ""
	raw, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
