package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/davidrenteria/boltbridge-backend/api/responses"
	boltwebhook "github.com/davidrenteria/boltbridge-backend/internal/webhooks/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/metrics"
	"github.com/davidrenteria/boltbridge-backend/pkg/types"

	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
)

const hmacHeader = "X-Bolt-Hmac-Sha256"

type boltHookService interface {
	HandleHook(ctx context.Context, hook *boltwebhook.Hook) (*boltwebhook.HookResult, error)
}

type signatureVerifier interface {
	Verify(ctx context.Context, payload []byte, suppliedHmac string) bool
}

type hookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// BoltWebhook handles processor payment status deliveries. The processor
// retries anything that is not a 2xx, so expected no-op outcomes (stale
// transitions, duplicate deliveries) are acknowledged with 200.
func BoltWebhook(svc boltHookService, verifier signatureVerifier, guard hookGuard, hookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook surface unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !verifier.Verify(ctx, payload, r.Header.Get(hmacHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var hook boltwebhook.Hook
		if err := json.Unmarshal(payload, &hook); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed hook body"))
			return
		}

		if hookMetrics != nil {
			hookMetrics.IncReceived(hook.Kind())
		}
		if logg != nil {
			ctx = logg.WithReference(ctx, hook.Reference)
		}

		duplicate, err := guard.CheckAndMark(ctx, hook.EventID())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if duplicate {
			if hookMetrics != nil {
				hookMetrics.IncIgnored(hook.Kind())
			}
			responses.WriteHookAck(w, http.StatusOK, types.HookAck{
				Status:    "success",
				Message:   "duplicate delivery",
				Reference: hook.Reference,
			})
			return
		}

		result, err := svc.HandleHook(ctx, &hook)
		if err != nil {
			_ = guard.Delete(ctx, hook.EventID())
			if hookMetrics != nil {
				hookMetrics.IncFailed(hook.Kind())
			}
			responses.WriteError(ctx, logg, w, mapHookError(err))
			return
		}

		ack := types.HookAck{Status: "success", Reference: hook.Reference}
		if result.Order != nil {
			ack.OrderNumber = result.Order.OrderNumber
		}
		if result.Ignored {
			ack.Message = "hook ignored"
			if hookMetrics != nil {
				hookMetrics.IncIgnored(hook.Kind())
			}
		} else if hookMetrics != nil {
			hookMetrics.IncProcessed(hook.Kind())
		}
		responses.WriteHookAck(w, http.StatusOK, ack)
	}
}

// mapHookError lifts materialization failures into the API taxonomy so the
// processor sees a retryable status.
func mapHookError(err error) error {
	var creation *orders.OrderCreationError
	if errors.As(err, &creation) {
		return pkgerrors.Wrap(pkgerrors.CodeOrderCreation, err, "order could not be created").
			WithDetails(map[string]any{
				"kind":      string(creation.Kind),
				"reference": creation.Reference,
			})
	}
	return err
}
