package bolt

// Transaction is the processor's transaction record, fetched by reference or
// delivered inside webhook payloads.
type Transaction struct {
	ID        string             `json:"id"`
	Reference string             `json:"reference"`
	Status    string             `json:"status"`
	Type      string             `json:"type"`
	Amount    Amount             `json:"amount"`
	Order     *TransactionOrder  `json:"order,omitempty"`
	Captures  []TransactionEvent `json:"captures,omitempty"`
}

type Amount struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency"`
}

type TransactionOrder struct {
	Cart TransactionCart `json:"cart"`
}

// TransactionCart embeds the snapshot linkage: OrderReference carries the
// immutable snapshot id, DisplayID the "reservedOrderNumber|snapshotID" pair.
type TransactionCart struct {
	OrderReference string `json:"order_reference"`
	DisplayID      string `json:"display_id"`
	TotalAmount    Amount `json:"total_amount"`
}

type TransactionEvent struct {
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

// OrderToken is returned by the order-creation endpoint and handed to the
// checkout widget.
type OrderToken struct {
	Token string `json:"token"`
}

// CartPayload is the priced cart submitted to the order-creation endpoint.
type CartPayload struct {
	OrderReference   string            `json:"order_reference"`
	DisplayID        string            `json:"display_id,omitempty"`
	CurrencyCode     string            `json:"currency"`
	TotalAmountCents int64             `json:"total_amount"`
	TaxAmountCents   int64             `json:"tax_amount,omitempty"`
	Items            []ItemPayload     `json:"items"`
	Discounts        []DiscountPayload `json:"discounts,omitempty"`
	BillingAddress   *AddressPayload   `json:"billing_address,omitempty"`
	Shipments        []ShipmentPayload `json:"shipments,omitempty"`
}

type ItemPayload struct {
	Reference        string `json:"reference"`
	Name             string `json:"name"`
	SKU              string `json:"sku,omitempty"`
	Description      string `json:"description,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	UnitPriceCents   int64  `json:"unit_price"`
	TotalAmountCents int64  `json:"total_amount"`
	Quantity         int    `json:"quantity"`
	Type             string `json:"type"`
}

type DiscountPayload struct {
	AmountCents int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference,omitempty"`
}

type AddressPayload struct {
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

type ShipmentPayload struct {
	ShippingAddress *AddressPayload `json:"shipping_address,omitempty"`
	Service         string          `json:"service"`
	Carrier         string          `json:"carrier,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	CostCents       int64           `json:"cost"`
	TaxAmountCents  int64           `json:"tax_amount"`
}

// SignResponse carries the signed merchant-user id triple.
type SignResponse struct {
	MerchantUserID string `json:"merchant_user_id"`
	Signature      string `json:"signature"`
	Nonce          string `json:"nonce"`
}

type captureRequest struct {
	TransactionReference string `json:"transaction_reference"`
	AmountCents          int64  `json:"amount,omitempty"`
	CurrencyCode         string `json:"currency,omitempty"`
}

type voidRequest struct {
	TransactionReference string `json:"transaction_reference"`
}

type refundRequest struct {
	TransactionReference string `json:"transaction_reference"`
	AmountCents          int64  `json:"amount"`
	CurrencyCode         string `json:"currency"`
}

type signRequest struct {
	MerchantUserID string `json:"merchant_user_id"`
}
