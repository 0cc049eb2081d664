package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/davidrenteria/boltbridge-backend/pkg/bolt"
	"github.com/davidrenteria/boltbridge-backend/pkg/db/models"
	"github.com/davidrenteria/boltbridge-backend/pkg/enums"
	pkgerrors "github.com/davidrenteria/boltbridge-backend/pkg/errors"
	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
	"github.com/davidrenteria/boltbridge-backend/pkg/types"
)

// BuildOutput is the priced submission payload plus the flag recording
// whether the platform-reported total was halved.
type BuildOutput struct {
	Payload        bolt.CartPayload
	TotalCorrected bool
}

// SnapshotBuilder prices a cart snapshot into the processor's cart payload.
// Item totals are recomputed from unit price and quantity rather than trusted
// from the platform's aggregate columns.
type SnapshotBuilder struct {
	logger *logger.Logger
}

// NewSnapshotBuilder builds the payload builder.
func NewSnapshotBuilder(logg *logger.Logger) (*SnapshotBuilder, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SnapshotBuilder{logger: logg}, nil
}

// Build renders the payload for the given checkout mode. Multistep emits the
// minimal itemized payload used before shipping and tax are known; singlestep
// emits the full payload with addresses, shipping and discounts.
//
// The upstream platform has a known defect where multi-address aggregation
// reports a grand total of exactly twice the real amount. When the reported
// total is exactly double the independently computed one, the computed total
// is substituted and the correction flag is set. Sub-totals are left as
// reported. See the upstream aggregation issue before changing this.
func (b *SnapshotBuilder) Build(ctx context.Context, cart *models.Cart, mode enums.CheckoutMode) (*BuildOutput, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown checkout mode %q", mode))
	}

	payload := bolt.CartPayload{
		OrderReference: cart.ID.String(),
		CurrencyCode:   cart.Currency.String(),
	}

	computed := decimal.Zero
	for _, item := range cart.Items {
		line := decimal.NewFromInt(int64(item.UnitPriceCents)).
			Mul(decimal.NewFromInt(int64(item.Quantity))).
			Round(0)
		computed = computed.Add(line)
		payload.Items = append(payload.Items, bolt.ItemPayload{
			Reference:        item.ProductRef,
			Name:             item.Name,
			SKU:              item.SKU,
			Description:      item.Description,
			ImageURL:         item.ImageURL,
			UnitPriceCents:   int64(item.UnitPriceCents),
			TotalAmountCents: line.IntPart(),
			Quantity:         item.Quantity,
			Type:             item.Type.String(),
		})
	}

	for _, discount := range cart.Discounts {
		computed = computed.Sub(decimal.NewFromInt(int64(discount.AmountCents)))
		payload.Discounts = append(payload.Discounts, bolt.DiscountPayload{
			AmountCents: int64(discount.AmountCents),
			Description: discount.Description,
			Reference:   discount.Reference,
		})
	}

	if mode == enums.CheckoutModeSinglestep {
		computed = computed.Add(decimal.NewFromInt(int64(cart.TaxCents)))
		payload.TaxAmountCents = int64(cart.TaxCents)
		payload.BillingAddress = addressPayload(ctx, b.logger, "billing", cart.BillingAddress)
		if shipment := b.shipmentPayload(ctx, cart); shipment != nil {
			payload.Shipments = append(payload.Shipments, *shipment)
			computed = computed.Add(decimal.NewFromInt(int64(shipment.CostCents))).
				Add(decimal.NewFromInt(int64(shipment.TaxAmountCents)))
		}
	}

	total, corrected := reconcileTotal(computed.IntPart(), int64(cart.TotalCents))
	if corrected {
		b.logger.Warn(ctx, "platform total was double the computed total, halved for submission")
	}
	payload.TotalAmountCents = total

	return &BuildOutput{Payload: payload, TotalCorrected: corrected}, nil
}

// reconcileTotal picks between the platform-reported total and the one
// computed from line items. The reported total wins unless it is absent or
// exactly double the computed amount.
func reconcileTotal(computed, reported int64) (int64, bool) {
	if computed < 0 {
		computed = 0
	}
	if reported <= 0 {
		return computed, false
	}
	if computed > 0 && reported == 2*computed {
		return computed, true
	}
	return reported, false
}

func (b *SnapshotBuilder) shipmentPayload(ctx context.Context, cart *models.Cart) *bolt.ShipmentPayload {
	if cart.ShippingLine == nil {
		return nil
	}
	return &bolt.ShipmentPayload{
		ShippingAddress: addressPayload(ctx, b.logger, "shipping", cart.ShippingAddress),
		Service:         cart.ShippingLine.Service,
		Carrier:         cart.ShippingLine.Carrier,
		Reference:       cart.ShippingLine.Reference,
		CostCents:       int64(cart.ShippingLine.CostCents),
		TaxAmountCents:  int64(cart.ShippingLine.TaxCents),
	}
}

// addressPayload drops incomplete address blocks instead of failing the
// build, so a half-filled form never blocks submission.
func addressPayload(ctx context.Context, logg *logger.Logger, kind string, address *types.Address) *bolt.AddressPayload {
	if address == nil {
		return nil
	}
	if !address.IsComplete() {
		logg.Warn(logg.WithField(ctx, "address_kind", kind), "dropping incomplete address from payload")
		return nil
	}
	return &bolt.AddressPayload{
		FirstName:      address.FirstName,
		LastName:       address.LastName,
		Company:        address.Company,
		StreetAddress1: address.StreetAddress1,
		StreetAddress2: address.StreetAddress2,
		Locality:       address.Locality,
		Region:         address.Region,
		PostalCode:     address.PostalCode,
		CountryCode:    address.CountryCode,
		Email:          address.Email,
		Phone:          address.Phone,
	}
}
