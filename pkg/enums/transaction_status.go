package enums

import "fmt"

// TransactionStatus tracks the processor-side lifecycle of a payment transaction.
type TransactionStatus string

const (
	TransactionStatusPending              TransactionStatus = "pending"
	TransactionStatusAuthorized           TransactionStatus = "authorized"
	TransactionStatusCompleted            TransactionStatus = "completed"
	TransactionStatusCancelled            TransactionStatus = "cancelled"
	TransactionStatusRejectedReversible   TransactionStatus = "rejected_reversible"
	TransactionStatusRejectedIrreversible TransactionStatus = "rejected_irreversible"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusAuthorized,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
	TransactionStatusRejectedReversible,
	TransactionStatusRejectedIrreversible,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
