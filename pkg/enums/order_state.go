package enums

import "fmt"

// OrderState tracks the platform-side lifecycle of a durable order.
type OrderState string

const (
	OrderStateNew           OrderState = "new"
	OrderStateProcessing    OrderState = "processing"
	OrderStatePaymentReview OrderState = "payment_review"
	OrderStateDeferred      OrderState = "deferred"
	OrderStateCanceled      OrderState = "canceled"
	OrderStateComplete      OrderState = "complete"
)

var validOrderStates = []OrderState{
	OrderStateNew,
	OrderStateProcessing,
	OrderStatePaymentReview,
	OrderStateDeferred,
	OrderStateCanceled,
	OrderStateComplete,
}

// String implements fmt.Stringer.
func (o OrderState) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderState.
func (o OrderState) IsValid() bool {
	for _, candidate := range validOrderStates {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderState converts raw input into an OrderState.
func ParseOrderState(value string) (OrderState, error) {
	for _, candidate := range validOrderStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order state %q", value)
}
