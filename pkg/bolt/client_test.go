package bolt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(context.Background(), config.BoltConfig{
		APIKey:     "test-key",
		Env:        "sandbox",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.baseURL = serverURL
	return client
}

func TestFetchTransactionSendsAuthHeaders(t *testing.T) {
	var gotAPIKey, gotNonce string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")
		gotNonce = r.Header.Get("X-Nonce")
		json.NewEncoder(w).Encode(Transaction{Reference: "TX-1", Status: "completed"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	tx, err := client.FetchTransaction(context.Background(), "TX-1")
	if err != nil {
		t.Fatalf("fetch transaction: %v", err)
	}
	if tx.Status != "completed" {
		t.Fatalf("expected completed, got %q", tx.Status)
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if gotNonce == "" {
		t.Fatalf("expected nonce header to be set")
	}
}

func TestFetchTransactionRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Transaction{Reference: "TX-1", Status: "authorized"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	tx, err := client.FetchTransaction(context.Background(), "TX-1")
	if err != nil {
		t.Fatalf("fetch transaction: %v", err)
	}
	if tx.Status != "authorized" {
		t.Fatalf("expected authorized, got %q", tx.Status)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestErrorBodyIsFailureDespite200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"errors":[{"code":1001,"message":"invalid cart"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateOrder(context.Background(), CartPayload{OrderReference: "snap-1"})
	if err == nil {
		t.Fatalf("expected error body to fail the call")
	}
}

func TestCaptureCarriesIdempotencyKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(Transaction{Reference: "TX-1", Status: "completed"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Capture(context.Background(), "TX-1", 3500, "USD"); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if gotKey == "" {
		t.Fatalf("expected idempotency key header on capture")
	}
}

func TestDoMapsHTTPStatusToDomainCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateOrder(context.Background(), CartPayload{OrderReference: "snap-1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %v", err)
	}
}

func TestVerifySignatureAcceptsOnly200WithoutErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Bolt-Hmac-Sha256") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ok, err := client.VerifySignature(context.Background(), []byte("{}"), "good")
	if err != nil || !ok {
		t.Fatalf("expected remote verification to pass, ok=%v err=%v", ok, err)
	}

	ok, err = client.VerifySignature(context.Background(), []byte("{}"), "bad")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected non-200 to fail verification")
	}
}

func TestNewClientRejectsUnknownEnvironment(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewClient(context.Background(), config.BoltConfig{APIKey: "k", Env: "staging"}, logg); err == nil {
		t.Fatalf("expected unknown environment to be rejected")
	}
}
