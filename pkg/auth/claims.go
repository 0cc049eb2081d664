package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CheckoutTokenPayload captures the data available when minting a checkout
// session JWT.
type CheckoutTokenPayload struct {
	CartID   uuid.UUID
	Currency string
	JTI      string
}

// CheckoutTokenClaims represents the typed JWT handed to the storefront when
// a checkout session starts. The cart id binds the later save call to the
// cart the token was minted for.
type CheckoutTokenClaims struct {
	CartID   uuid.UUID `json:"cart_id"`
	Currency string    `json:"currency,omitempty"`
	jwt.RegisteredClaims
}
