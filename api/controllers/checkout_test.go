package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	checkoutsvc "github.com/davidrenteria/boltbridge-backend/internal/checkout"
	"github.com/davidrenteria/boltbridge-backend/internal/orders"
	"github.com/davidrenteria/boltbridge-backend/pkg/auth"
	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type checkoutServiceStub struct {
	tokenResult *checkoutsvc.TokenResult
	tokenErr    error
	saveResult  *checkoutsvc.SaveResult
	saveErr     error
	savedCartID uuid.UUID
}

func (s *checkoutServiceStub) CreateToken(ctx context.Context, cartID uuid.UUID, mode enums.CheckoutMode) (*checkoutsvc.TokenResult, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return s.tokenResult, nil
}

func (s *checkoutServiceStub) Save(ctx context.Context, reference string, cartID uuid.UUID, comments string) (*checkoutsvc.SaveResult, error) {
	s.savedCartID = cartID
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return s.saveResult, nil
}

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret-test-secret-test-1234",
	Issuer:            "boltbridge-test",
	ExpirationMinutes: 30,
}

func sessionTokenFor(t *testing.T, cartID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintCheckoutToken(testJWTConfig, time.Now().UTC(), auth.CheckoutTokenPayload{
		CartID:   cartID,
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	return token
}

func TestCheckoutTokenReturnsCreated(t *testing.T) {
	snapshotID := uuid.New()
	svc := &checkoutServiceStub{tokenResult: &checkoutsvc.TokenResult{
		OrderToken:   "bolt-order-token",
		SessionToken: "session-jwt",
		SnapshotID:   snapshotID,
		OrderNumber:  "BB-API00001",
	}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	body := `{"cart_id":"` + uuid.NewString() + `","checkout_mode":"singlestep"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/token", strings.NewReader(body))
	rec := httptest.NewRecorder()

	CheckoutToken(svc, logg)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data checkoutTokenResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderToken != "bolt-order-token" || envelope.Data.OrderNumber != "BB-API00001" {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
}

func TestCheckoutTokenRejectsUnknownMode(t *testing.T) {
	svc := &checkoutServiceStub{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	body := `{"cart_id":"` + uuid.NewString() + `","checkout_mode":"quadruplestep"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/token", strings.NewReader(body))
	rec := httptest.NewRecorder()

	CheckoutToken(svc, logg)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutSaveRequiresSessionToken(t *testing.T) {
	svc := &checkoutServiceStub{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/save", strings.NewReader(`{"reference":"TX-1"}`))
	rec := httptest.NewRecorder()

	CheckoutSave(svc, testJWTConfig, logg)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutSaveUsesCartFromSessionToken(t *testing.T) {
	cartID := uuid.New()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "BB-API00002",
		State:       enums.OrderStateComplete,
		Payment:     &models.OrderPayment{Reference: "TX-1", AmountCents: 3500},
	}
	svc := &checkoutServiceStub{saveResult: &checkoutsvc.SaveResult{Order: order}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/save", strings.NewReader(`{"reference":"TX-1"}`))
	req.Header.Set("Authorization", "Bearer "+sessionTokenFor(t, cartID))
	rec := httptest.NewRecorder()

	CheckoutSave(svc, testJWTConfig, logg)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.savedCartID != cartID {
		t.Fatalf("expected cart id from session token, got %s", svc.savedCartID)
	}
	var envelope struct {
		Data orderSummaryResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "BB-API00002" || envelope.Data.TotalCents != 3500 {
		t.Fatalf("unexpected summary: %+v", envelope.Data)
	}
}

func TestCheckoutSaveDuplicateIsConflict(t *testing.T) {
	svc := &checkoutServiceStub{saveResult: &checkoutsvc.SaveResult{
		Order:            &models.Order{OrderNumber: "BB-API00003"},
		AlreadyProcessed: true,
	}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/save", strings.NewReader(`{"reference":"TX-1"}`))
	req.Header.Set("Authorization", "Bearer "+sessionTokenFor(t, uuid.New()))
	rec := httptest.NewRecorder()

	CheckoutSave(svc, testJWTConfig, logg)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCheckoutSaveMapsOrderCreationFailure(t *testing.T) {
	svc := &checkoutServiceStub{saveErr: &orders.OrderCreationError{
		Kind:      orders.KindCartMismatch,
		Reference: "TX-1",
	}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/save", strings.NewReader(`{"reference":"TX-1"}`))
	req.Header.Set("Authorization", "Bearer "+sessionTokenFor(t, uuid.New()))
	rec := httptest.NewRecorder()

	CheckoutSave(svc, testJWTConfig, logg)(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}
