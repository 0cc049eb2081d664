package types

import "strings"

// Address is the billing/shipping address block stored on carts and sent to
// the processor. Persisted as jsonb.
type Address struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Company        string `json:"company,omitempty"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	Locality       string `json:"locality"`
	Region         string `json:"region"`
	PostalCode     string `json:"postal_code"`
	CountryCode    string `json:"country_code"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// IsComplete reports whether every field the processor requires is present.
// Incomplete addresses are dropped from payloads rather than failing a build.
func (a Address) IsComplete() bool {
	required := []string{
		a.FirstName,
		a.LastName,
		a.StreetAddress1,
		a.Locality,
		a.Region,
		a.PostalCode,
		a.CountryCode,
	}
	for _, field := range required {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
