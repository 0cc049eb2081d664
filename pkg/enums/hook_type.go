package enums

import "fmt"

// HookType identifies the notification_type carried by a processor webhook.
type HookType string

const (
	HookTypeAuth                 HookType = "auth"
	HookTypeCapture              HookType = "capture"
	HookTypePayment              HookType = "payment"
	HookTypePending              HookType = "pending"
	HookTypeRejectedReversible   HookType = "rejected_reversible"
	HookTypeRejectedIrreversible HookType = "rejected_irreversible"
	HookTypeVoid                 HookType = "void"
)

var validHookTypes = []HookType{
	HookTypeAuth,
	HookTypeCapture,
	HookTypePayment,
	HookTypePending,
	HookTypeRejectedReversible,
	HookTypeRejectedIrreversible,
	HookTypeVoid,
}

// String implements fmt.Stringer.
func (h HookType) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HookType.
func (h HookType) IsValid() bool {
	for _, candidate := range validHookTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHookType converts raw input into a HookType.
func ParseHookType(value string) (HookType, error) {
	for _, candidate := range validHookTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hook type %q", value)
}
