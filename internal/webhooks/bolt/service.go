package boltwebhook

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type processorClient interface {
	FetchTransaction(ctx context.Context, reference string) (*bolt.Transaction, error)
	Capture(ctx context.Context, reference string, amountCents int64, currency string) (*bolt.Transaction, error)
}

// Hook is the processor's webhook body. Older deliveries carry the hook type
// under "type", newer ones under "notification_type".
type Hook struct {
	Type             string `json:"type"`
	NotificationType string `json:"notification_type"`
	Reference        string `json:"reference" validate:"required"`
	TransactionID    string `json:"transaction_id"`
	DisplayID        string `json:"display_id"`
}

// Kind returns the hook type field regardless of which key carried it.
func (h Hook) Kind() string {
	if h.NotificationType != "" {
		return h.NotificationType
	}
	return h.Type
}

// EventID is the idempotency identity of one delivery: the same transaction
// can legitimately send several hook types.
func (h Hook) EventID() string {
	id := h.TransactionID
	if id == "" {
		id = h.Reference
	}
	return id + ":" + h.Kind()
}

// HookResult reports what a delivery did. Ignored deliveries are stale,
// duplicate or out-of-order events that must still be acknowledged.
type HookResult struct {
	Order   *models.Order
	Ignored bool
	Reason  string
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Orders       orders.Repository
	Materializer *orders.Materializer
	Payment      *payment.Service
	Processor    processorClient
	Logger       *logger.Logger
}

// Service routes authenticated webhook deliveries: known transactions go
// through the state machine, unknown ones materialize an order first.
type Service struct {
	orders       orders.Repository
	materializer *orders.Materializer
	payment      *payment.Service
	processor    processorClient
	logger       *logger.Logger
}

// NewService builds the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "materializer required")
	}
	if params.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "processor client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:       params.Orders,
		materializer: params.Materializer,
		payment:      params.Payment,
		processor:    params.Processor,
		logger:       params.Logger,
	}, nil
}

// HandleHook processes one authenticated delivery. Invalid transitions and
// already-materialized carts come back as ignored results rather than errors
// so the transport layer acknowledges them and the processor stops retrying.
func (s *Service) HandleHook(ctx context.Context, hook *Hook) (*HookResult, error) {
	if hook == nil || strings.TrimSpace(hook.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hook reference is required")
	}

	hookType, err := enums.ParseHookType(hook.Kind())
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	status, err := payment.HookStatus(hookType)
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithReference(ctx, hook.Reference)

	order, err := s.findOrder(ctx, hook)
	if err != nil {
		return nil, err
	}
	if order != nil {
		result, err := s.applyToExisting(logCtx, order, status)
		if err != nil || result.Ignored {
			return result, err
		}
		if err := s.maybeCapture(logCtx, result.Order); err != nil {
			return nil, err
		}
		return result, nil
	}

	txn, err := s.processor.FetchTransaction(ctx, hook.Reference)
	if err != nil {
		return nil, err
	}

	order, err = s.materializer.Materialize(ctx, txn, nil)
	if err != nil {
		var duplicated *orders.DuplicatedTransitionError
		if errors.As(err, &duplicated) {
			s.logger.Info(logCtx, "hook arrived for an already materialized cart, ignoring")
			return &HookResult{Order: order, Ignored: true, Reason: "already materialized"}, nil
		}
		return nil, err
	}
	if err := s.maybeCapture(logCtx, order); err != nil {
		return nil, err
	}

	s.logger.Info(logCtx, "hook materialized a new order")
	return &HookResult{Order: order}, nil
}

// maybeCapture requests capture of a freshly authorized payment whose record
// was marked for auto capture. Failures surface as errors so the processor
// redelivers the hook; the redelivery is a no-op transition and retries the
// capture. Completion itself still arrives as a capture hook.
func (s *Service) maybeCapture(ctx context.Context, order *models.Order) error {
	if order == nil || order.Payment == nil {
		return nil
	}
	if !order.Payment.AutoCapture || order.Payment.Status != enums.TransactionStatusAuthorized {
		return nil
	}
	_, err := s.processor.Capture(ctx, order.Payment.Reference, int64(order.Payment.AmountCents), order.Currency.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requesting auto capture")
	}
	s.logger.Info(s.logger.WithOrderNumber(ctx, order.OrderNumber), "auto capture requested")
	return nil
}

// findOrder resolves the order a delivery belongs to, first by payment
// reference, then by the order number embedded in the display id.
func (s *Service) findOrder(ctx context.Context, hook *Hook) (*models.Order, error) {
	order, err := s.orders.FindByPaymentReference(ctx, hook.Reference)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up order by reference")
	}

	if hook.DisplayID == "" {
		return nil, nil
	}
	orderNumber, _ := orders.ParseDisplayID(hook.DisplayID)
	if orderNumber == "" {
		return nil, nil
	}
	order, err = s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up order by display id")
	}
	return order, nil
}

func (s *Service) applyToExisting(ctx context.Context, order *models.Order, status enums.TransactionStatus) (*HookResult, error) {
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no payment record")
	}
	prev := order.Payment.Status
	err := s.payment.ApplyStatus(ctx, order, order.Payment, status, &prev)
	if err != nil {
		var invalid *payment.InvalidTransitionError
		if errors.As(err, &invalid) {
			s.logger.Info(ctx, "stale or out-of-order hook, ignoring")
			return &HookResult{Order: order, Ignored: true, Reason: invalid.Error()}, nil
		}
		return nil, err
	}
	s.logger.Info(ctx, "hook applied to existing order")
	return &HookResult{Order: order}, nil
}
