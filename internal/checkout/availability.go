package checkout

import (
	"fmt"

	"github.com/davidrenteria/boltbridge-backend/pkg/config"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
)

// AvailabilityChecker gates checkout on the configured order limits and
// country allow-list before anything is sent to the processor.
type AvailabilityChecker struct {
	cfg config.CheckoutConfig
}

// NewAvailabilityChecker builds the checker from config.
func NewAvailabilityChecker(cfg config.CheckoutConfig) *AvailabilityChecker {
	return &AvailabilityChecker{cfg: cfg}
}

// Check validates the cart against the configured limits. All failures are
// validation errors surfaced to the shopper before token creation.
func (c *AvailabilityChecker) Check(cart *models.Cart) error {
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if c.cfg.MinOrderTotalCents > 0 && cart.TotalCents < c.cfg.MinOrderTotalCents {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order total %d below minimum %d", cart.TotalCents, c.cfg.MinOrderTotalCents))
	}
	if c.cfg.MaxOrderTotalCents > 0 && cart.TotalCents > c.cfg.MaxOrderTotalCents {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order total %d above maximum %d", cart.TotalCents, c.cfg.MaxOrderTotalCents))
	}
	if cart.BillingAddress != nil && cart.BillingAddress.CountryCode != "" && !c.cfg.CountryAllowed(cart.BillingAddress.CountryCode) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("billing country %q is not supported", cart.BillingAddress.CountryCode))
	}
	if cart.ShippingAddress != nil && cart.ShippingAddress.CountryCode != "" && !c.cfg.CountryAllowed(cart.ShippingAddress.CountryCode) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("shipping country %q is not supported", cart.ShippingAddress.CountryCode))
	}
	return nil
}
