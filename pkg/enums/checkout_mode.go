package enums

import "fmt"

// CheckoutMode selects the payload shape submitted to the processor.
// Multistep checkouts submit a subtotal-only payload before shipping and tax
// are known; singlestep checkouts submit the full priced payload.
type CheckoutMode string

const (
	CheckoutModeMultistep  CheckoutMode = "multistep"
	CheckoutModeSinglestep CheckoutMode = "singlestep"
)

var validCheckoutModes = []CheckoutMode{
	CheckoutModeMultistep,
	CheckoutModeSinglestep,
}

// String implements fmt.Stringer.
func (c CheckoutMode) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutMode.
func (c CheckoutMode) IsValid() bool {
	for _, candidate := range validCheckoutModes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutMode converts raw input into a CheckoutMode.
func ParseCheckoutMode(value string) (CheckoutMode, error) {
	for _, candidate := range validCheckoutModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout mode %q", value)
}
