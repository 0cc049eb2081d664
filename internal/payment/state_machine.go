package payment

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

// InvalidTransitionError is returned when a webhook reports a status the
// stored status cannot legally move to. Callers acknowledge these rather than
// asking the processor to redeliver.
type InvalidTransitionError struct {
	Prev enums.TransactionStatus
	Next enums.TransactionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment transition from %q to %q", e.Prev, e.Next)
}

// transitions is the set of legal status edges. Statuses absent from the map
// are terminal.
var transitions = map[enums.TransactionStatus][]enums.TransactionStatus{
	enums.TransactionStatusPending: {
		enums.TransactionStatusAuthorized,
		enums.TransactionStatusCancelled,
		enums.TransactionStatusRejectedReversible,
		enums.TransactionStatusRejectedIrreversible,
		enums.TransactionStatusCompleted,
	},
	enums.TransactionStatusAuthorized: {
		enums.TransactionStatusCompleted,
		enums.TransactionStatusCancelled,
	},
	enums.TransactionStatusRejectedReversible: {
		enums.TransactionStatusAuthorized,
		enums.TransactionStatusCancelled,
		enums.TransactionStatusRejectedIrreversible,
		enums.TransactionStatusCompleted,
	},
}

// hookStatuses maps processor hook types to the status they report.
var hookStatuses = map[enums.HookType]enums.TransactionStatus{
	enums.HookTypeAuth:                 enums.TransactionStatusAuthorized,
	enums.HookTypeCapture:              enums.TransactionStatusCompleted,
	enums.HookTypePayment:              enums.TransactionStatusCompleted,
	enums.HookTypePending:              enums.TransactionStatusPending,
	enums.HookTypeRejectedReversible:   enums.TransactionStatusRejectedReversible,
	enums.HookTypeRejectedIrreversible: enums.TransactionStatusRejectedIrreversible,
	enums.HookTypeVoid:                 enums.TransactionStatusCancelled,
}

// HookStatus resolves the transaction status a hook type reports. Unknown
// hook types fail fast so new processor events surface as errors, not silent
// drops.
func HookStatus(hook enums.HookType) (enums.TransactionStatus, error) {
	status, ok := hookStatuses[hook]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported hook type %q", hook))
	}
	return status, nil
}

// orderStates maps each transaction status to the order state it drives.
var orderStates = map[enums.TransactionStatus]enums.OrderState{
	enums.TransactionStatusPending:              enums.OrderStatePaymentReview,
	enums.TransactionStatusAuthorized:           enums.OrderStateProcessing,
	enums.TransactionStatusCompleted:            enums.OrderStateComplete,
	enums.TransactionStatusCancelled:            enums.OrderStateCanceled,
	enums.TransactionStatusRejectedIrreversible: enums.OrderStateCanceled,
	enums.TransactionStatusRejectedReversible:   enums.OrderStateDeferred,
}

// StatusToOrderState returns the order state a transaction status moves an
// order into.
func StatusToOrderState(status enums.TransactionStatus) (enums.OrderState, bool) {
	state, ok := orderStates[status]
	return state, ok
}

// CanTransition reports whether prev may move to next. A nil prev is a first
// observation and always passes. Equal statuses are a redelivery, handled by
// the caller as a no-op.
func CanTransition(prev *enums.TransactionStatus, next enums.TransactionStatus) error {
	if prev == nil || *prev == next {
		return nil
	}
	for _, allowed := range transitions[*prev] {
		if allowed == next {
			return nil
		}
	}
	return &InvalidTransitionError{Prev: *prev, Next: next}
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies transaction status changes to an order, including the
// side effects each status carries.
type Service struct {
	repo   Repository
	tx     txRunner
	logger *logger.Logger
}

// ServiceParams collects the dependencies for NewService.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Logger *logger.Logger
}

// NewService builds the payment state machine service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:   params.Repo,
		tx:     params.Tx,
		logger: params.Logger,
	}, nil
}

// ApplyStatus validates the transition from prev to next and applies it to
// the order and its payment inside one transaction. Redeliveries of the
// current status succeed without touching anything. A nil prev is a first
// observation and skips validation.
func (s *Service) ApplyStatus(ctx context.Context, order *models.Order, paymentRecord *models.OrderPayment, next enums.TransactionStatus, prev *enums.TransactionStatus) error {
	if order == nil || paymentRecord == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order and payment are required")
	}
	if !next.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown transaction status %q", next))
	}

	if prev != nil && *prev == next {
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"reference": paymentRecord.Reference,
			"status":    next.String(),
		})
		s.logger.Info(logCtx, "payment status redelivered, no-op")
		return nil
	}
	if err := CanTransition(prev, next); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.apply(ctx, s.repo.WithTx(tx), order, paymentRecord, next)
	})
}

// ApplyStatusTx is ApplyStatus for callers already inside a transaction.
func (s *Service) ApplyStatusTx(ctx context.Context, tx *gorm.DB, order *models.Order, paymentRecord *models.OrderPayment, next enums.TransactionStatus, prev *enums.TransactionStatus) error {
	if order == nil || paymentRecord == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order and payment are required")
	}
	if prev != nil && *prev == next {
		return nil
	}
	if err := CanTransition(prev, next); err != nil {
		return err
	}
	return s.apply(ctx, s.repo.WithTx(tx), order, paymentRecord, next)
}

func (s *Service) apply(ctx context.Context, repo Repository, order *models.Order, paymentRecord *models.OrderPayment, next enums.TransactionStatus) error {
	if err := repo.UpdatePayment(ctx, paymentRecord.ID, map[string]any{"status": next}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating payment status")
	}
	paymentRecord.Status = next

	switch next {
	case enums.TransactionStatusAuthorized:
		if err := repo.UpdateOrderState(ctx, order.ID, enums.OrderStateProcessing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "moving order to processing")
		}
		order.State = enums.OrderStateProcessing
		return s.recordEvent(ctx, repo, order, paymentRecord, enums.PaymentEventTypeAuthorization, "payment authorized")

	case enums.TransactionStatusCompleted:
		if err := s.settleInvoices(ctx, repo, order, paymentRecord); err != nil {
			return err
		}
		if err := repo.UpdateOrderState(ctx, order.ID, enums.OrderStateComplete); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "moving order to complete")
		}
		order.State = enums.OrderStateComplete
		return s.recordEvent(ctx, repo, order, paymentRecord, enums.PaymentEventTypeCapture, "payment captured")

	case enums.TransactionStatusPending:
		if err := repo.UpdateOrderState(ctx, order.ID, enums.OrderStatePaymentReview); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "moving order to payment review")
		}
		order.State = enums.OrderStatePaymentReview
		return nil

	case enums.TransactionStatusCancelled, enums.TransactionStatusRejectedIrreversible:
		if err := s.recordEvent(ctx, repo, order, paymentRecord, enums.PaymentEventTypeVoid, "payment voided"); err != nil {
			return err
		}
		if err := repo.UpdateOrderState(ctx, order.ID, enums.OrderStateCanceled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "moving order to canceled")
		}
		order.State = enums.OrderStateCanceled
		return nil

	case enums.TransactionStatusRejectedReversible:
		if err := repo.UpdateOrderState(ctx, order.ID, enums.OrderStateDeferred); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deferring order")
		}
		order.State = enums.OrderStateDeferred
		return s.recordEvent(ctx, repo, order, paymentRecord, enums.PaymentEventTypeRejection, "payment rejected, recoverable")
	}

	return nil
}

// settleInvoices resolves the order's billing on capture. No invoice means
// the webhook path bills the order itself; exactly one means an earlier
// authorization opened it and it gets captured now. More than one invoice
// indicates a corrupted order and fails hard.
func (s *Service) settleInvoices(ctx context.Context, repo Repository, order *models.Order, paymentRecord *models.OrderPayment) error {
	invoices, err := repo.FindInvoicesByOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading invoices")
	}

	now := time.Now().UTC()
	switch len(invoices) {
	case 0:
		_, err := repo.CreateInvoice(ctx, &models.Invoice{
			OrderID:     order.ID,
			AmountCents: paymentRecord.AmountCents,
			Paid:        true,
			Captured:    true,
			Reference:   paymentRecord.Reference,
			PaidAt:      &now,
			CapturedAt:  &now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating invoice")
		}
		return nil
	case 1:
		err := repo.UpdateInvoice(ctx, invoices[0].ID, map[string]any{
			"paid":        true,
			"captured":    true,
			"paid_at":     now,
			"captured_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "capturing invoice")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("order %s has %d invoices, expected at most one", order.ID, len(invoices)))
	}
}

func (s *Service) recordEvent(ctx context.Context, repo Repository, order *models.Order, paymentRecord *models.OrderPayment, eventType enums.PaymentEventType, detail string) error {
	err := repo.CreatePaymentEvent(ctx, &models.PaymentEvent{
		OrderID:     order.ID,
		Type:        eventType,
		Reference:   paymentRecord.Reference,
		AmountCents: paymentRecord.AmountCents,
		Detail:      detail,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment event")
	}
	return nil
}
