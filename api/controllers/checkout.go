package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davidrenteria/boltbridge-backend/api/responses"
	"github.com/davidrenteria/boltbridge-backend/api/validators"
	checkoutsvc "github.com/davidrenteria/boltbridge-backend/internal/checkout"
	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/pkg/auth"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type checkoutService interface {
	CreateToken(ctx context.Context, cartID uuid.UUID, mode enums.CheckoutMode) (*checkoutsvc.TokenResult, error)
	Save(ctx context.Context, reference string, cartID uuid.UUID, comments string) (*checkoutsvc.SaveResult, error)
}

type checkoutTokenRequest struct {
	CartID       uuid.UUID `json:"cart_id" validate:"required"`
	CheckoutMode string    `json:"checkout_mode" validate:"required"`
}

type checkoutTokenResponse struct {
	OrderToken   string    `json:"order_token"`
	SessionToken string    `json:"session_token"`
	SnapshotID   uuid.UUID `json:"snapshot_id"`
	OrderNumber  string    `json:"order_number"`
}

type checkoutSaveRequest struct {
	Reference string `json:"reference" validate:"required"`
	Comments  string `json:"comments,omitempty"`
}

type orderSummaryResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	State       string    `json:"state"`
	TotalCents  int       `json:"total_cents"`
	Reference   string    `json:"reference,omitempty"`
}

// CheckoutToken snapshots the cart and returns the processor order token
// alongside the signed session token the save call must present.
func CheckoutToken(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutTokenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.CartID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required"))
			return
		}
		mode, err := enums.ParseCheckoutMode(payload.CheckoutMode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		result, err := svc.CreateToken(r.Context(), payload.CartID, mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, mapCheckoutError(err))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutTokenResponse{
			OrderToken:   result.OrderToken,
			SessionToken: result.SessionToken,
			SnapshotID:   result.SnapshotID,
			OrderNumber:  result.OrderNumber,
		})
	}
}

// CheckoutSave materializes the order after the browser reports payment. The
// cart the order must belong to comes from the session token, never from the
// request body.
func CheckoutSave(svc checkoutService, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		claims, err := sessionClaims(r, jwtCfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutSaveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Save(r.Context(), payload.Reference, claims.CartID, payload.Comments)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, mapCheckoutError(err))
			return
		}
		if result.AlreadyProcessed {
			conflict := pkgerrors.New(pkgerrors.CodeConflict, "order already processed")
			responses.WriteError(r.Context(), logg, w, conflict)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderSummary(result.Order))
	}
}

func sessionClaims(r *http.Request, jwtCfg config.JWTConfig) (*auth.CheckoutTokenClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session token required")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed authorization header")
	}
	claims, err := auth.ParseCheckoutToken(jwtCfg, strings.TrimSpace(token))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	return claims, nil
}

func orderSummary(order *models.Order) orderSummaryResponse {
	if order == nil {
		return orderSummaryResponse{}
	}
	summary := orderSummaryResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		State:       order.State.String(),
	}
	if order.Payment != nil {
		summary.TotalCents = order.Payment.AmountCents
		summary.Reference = order.Payment.Reference
	}
	return summary
}

// mapCheckoutError lifts domain errors from the materializer into the API
// error taxonomy.
func mapCheckoutError(err error) error {
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
