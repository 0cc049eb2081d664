package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/google/uuid"
)

func TestMintAndParseCheckoutToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boltbridge",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	cartID := uuid.New()

	token, err := MintCheckoutToken(cfg, now, CheckoutTokenPayload{CartID: cartID, Currency: "USD"})
	if err != nil {
		t.Fatalf("mint checkout token: %v", err)
	}

	claims, err := ParseCheckoutToken(cfg, token)
	if err != nil {
		t.Fatalf("parse checkout token: %v", err)
	}

	if claims.CartID != cartID {
		t.Fatalf("expected cart_id %s, got %s", cartID, claims.CartID)
	}
	if claims.Currency != "USD" {
		t.Fatalf("unexpected currency %q", claims.Currency)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseCheckoutTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boltbridge",
		ExpirationMinutes: 10,
	}

	token, err := MintCheckoutToken(cfg, time.Now(), CheckoutTokenPayload{CartID: uuid.New()})
	if err != nil {
		t.Fatalf("mint checkout token: %v", err)
	}

	if _, err = ParseCheckoutToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseCheckoutTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boltbridge",
		ExpirationMinutes: 15,
	}

	token, err := MintCheckoutToken(cfg, time.Now().Add(-time.Hour), CheckoutTokenPayload{CartID: uuid.New()})
	if err != nil {
		t.Fatalf("mint checkout token: %v", err)
	}

	_, err = ParseCheckoutToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintCheckoutTokenRequiresCartID(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boltbridge",
		ExpirationMinutes: 5,
	}

	if _, err := MintCheckoutToken(cfg, time.Now(), CheckoutTokenPayload{}); err == nil {
		t.Fatal("expected missing cart id error")
	}
}
