package enums

import "fmt"

// PaymentEventType labels append-only transaction records written by the
// state machine and the materializer.
type PaymentEventType string

const (
	PaymentEventTypeOrder         PaymentEventType = "order"
	PaymentEventTypeAuthorization PaymentEventType = "authorization"
	PaymentEventTypeCapture       PaymentEventType = "capture"
	PaymentEventTypeVoid          PaymentEventType = "void"
	PaymentEventTypeRejection     PaymentEventType = "rejection"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventTypeOrder,
	PaymentEventTypeAuthorization,
	PaymentEventTypeCapture,
	PaymentEventTypeVoid,
	PaymentEventTypeRejection,
}

// String implements fmt.Stringer.
func (p PaymentEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentEventType.
func (p PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts raw input into a PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}
