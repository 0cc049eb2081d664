package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/davidrenteria/boltbridge-backend/internal/payment"
	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

const defaultReconcileGrace = time.Hour

type deferredOrderReader interface {
	FindDeferredBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type transactionFetcher interface {
	FetchTransaction(ctx context.Context, reference string) (*bolt.Transaction, error)
}

type statusApplier interface {
	ApplyStatus(ctx context.Context, order *models.Order, paymentRecord *models.OrderPayment, next enums.TransactionStatus, prev *enums.TransactionStatus) error
}

// PaymentReconcileJobParams configure the deferred payment sweeper.
type PaymentReconcileJobParams struct {
	Logger    *logger.Logger
	Orders    deferredOrderReader
	Processor transactionFetcher
	Payment   statusApplier
	Grace     time.Duration
}

// NewPaymentReconcileJob builds the cron job that re-polls the processor for
// orders parked in deferred and applies whatever status it reports now.
// Deferred orders otherwise only move when the processor redelivers a hook.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if params.Payment == nil {
		return nil, fmt.Errorf("payment service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	return &paymentReconcileJob{
		logg:      params.Logger,
		orders:    params.Orders,
		processor: params.Processor,
		payment:   params.Payment,
		grace:     grace,
		now:       time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg      *logger.Logger
	orders    deferredOrderReader
	processor transactionFetcher
	payment   statusApplier
	grace     time.Duration
	now       func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	deferred, err := j.orders.FindDeferredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query deferred orders: %w", err)
	}

	var errs []error
	reconciled := 0
	for i := range deferred {
		if err := j.reconcileOrder(ctx, &deferred[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		reconciled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(deferred),
		"reconciled": reconciled,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "payment reconcile loop complete")
	return multierr.Combine(errs...)
}

func (j *paymentReconcileJob) reconcileOrder(ctx context.Context, order *models.Order) error {
	if order.Payment == nil {
		return fmt.Errorf("order %s has no payment record", order.ID)
	}
	logCtx := j.logg.WithOrderNumber(ctx, order.OrderNumber)

	txn, err := j.processor.FetchTransaction(ctx, order.Payment.Reference)
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", order.Payment.Reference, err)
	}
	status, err := enums.ParseTransactionStatus(txn.Status)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", order.Payment.Reference, err)
	}

	prev := order.Payment.Status
	if status == prev {
		return nil
	}
	if err := j.payment.ApplyStatus(ctx, order, order.Payment, status, &prev); err != nil {
		var invalid *payment.InvalidTransitionError
		if errors.As(err, &invalid) {
			j.logg.Warn(logCtx, "processor reports a status the stored one cannot reach, leaving order deferred")
			return nil
		}
		return fmt.Errorf("apply status to order %s: %w", order.OrderNumber, err)
	}
	if state, ok := payment.StatusToOrderState(status); ok {
		logCtx = j.logg.WithField(logCtx, "order_state", state.String())
	}
	j.logg.Info(logCtx, "deferred order reconciled")
	return nil
}
