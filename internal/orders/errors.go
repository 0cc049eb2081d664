package orders

import "fmt"

// DuplicatedTransitionError signals that the cart was already claimed for
// materialization, either by a concurrent webhook or an earlier delivery.
// Callers acknowledge it so the processor stops redelivering.
type DuplicatedTransitionError struct {
	Reference string
}

func (e *DuplicatedTransitionError) Error() string {
	return fmt.Sprintf("cart for transaction %q already materialized or locked", e.Reference)
}

// OrderCreationKind classifies why an order could not be materialized.
type OrderCreationKind string

const (
	KindSnapshotMissing  OrderCreationKind = "snapshot_missing"
	KindSnapshotExpired  OrderCreationKind = "snapshot_expired"
	KindItemsUnavailable OrderCreationKind = "items_unavailable"
	KindCartMismatch     OrderCreationKind = "cart_mismatch"
)

// OrderCreationError is a retryable materialization failure. The webhook
// surface maps it to 422 so the processor redelivers.
type OrderCreationError struct {
	Kind      OrderCreationKind
	Reference string
	Detail    string
}

func (e *OrderCreationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("order creation failed for %q: %s: %s", e.Reference, e.Kind, e.Detail)
	}
	return fmt.Sprintf("order creation failed for %q: %s", e.Reference, e.Kind)
}
