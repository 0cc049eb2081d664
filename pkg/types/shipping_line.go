package types

import (
	"fmt"
	"strings"
)

// ShippingLine is the shipping selection recorded on a cart snapshot and
// submitted to the processor. Persisted as jsonb.
type ShippingLine struct {
	Service   string `json:"service"`
	Carrier   string `json:"carrier"`
	Reference string `json:"reference,omitempty"`
	CostCents int    `json:"cost_cents"`
	TaxCents  int    `json:"tax_cents"`
}

// Title renders the legacy "Carrier - Service" display string used to match
// rates on snapshots that predate structured references.
func (s ShippingLine) Title() string {
	carrier := strings.TrimSpace(s.Carrier)
	service := strings.TrimSpace(s.Service)
	switch {
	case carrier != "" && service != "":
		return fmt.Sprintf("%s - %s", carrier, service)
	case carrier != "":
		return carrier
	default:
		return service
	}
}
