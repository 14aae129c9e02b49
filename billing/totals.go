package billing

import (
	"feastflow-api/apperrors"
	"feastflow-api/models"

	"github.com/shopspring/decimal"
)

// Input carries everything needed to derive an order's totals.
type Input struct {
	Items          []models.OrderItem
	TaxRate        decimal.Decimal
	DeliveryFee    decimal.Decimal
	Tip            decimal.Decimal
	DiscountCode   string
	DiscountAmount decimal.Decimal
}

// ComputeTotals derives subtotal, tax and total from the line items.
// Customization prices are charged per unit. Rounding is round-half-up to two
// decimal places, applied once on each derived field rather than on
// intermediate per-item values, so rounding drift cannot accumulate across
// line items.
func ComputeTotals(in Input) (models.OrderTotals, error) {
	subtotal := decimal.Zero
	for _, item := range in.Items {
		unit := item.UnitPrice
		for _, c := range item.Customizations {
			unit = unit.Add(c.Price)
		}
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if in.DiscountAmount.GreaterThan(subtotal) {
		return models.OrderTotals{}, &apperrors.InvalidDiscountError{
			Discount: in.DiscountAmount.StringFixed(2),
			Subtotal: subtotal.StringFixed(2),
		}
	}

	// decimal.Round is half-away-from-zero, i.e. half-up for the non-negative
	// amounts handled here
	tax := subtotal.Mul(in.TaxRate).Round(2)
	total := subtotal.
		Add(tax).
		Add(in.DeliveryFee).
		Add(in.Tip).
		Sub(in.DiscountAmount).
		Round(2)

	return models.OrderTotals{
		Subtotal:       subtotal.Round(2),
		Tax:            tax,
		DeliveryFee:    in.DeliveryFee,
		Tip:            in.Tip,
		DiscountCode:   in.DiscountCode,
		DiscountAmount: in.DiscountAmount,
		Total:          total,
	}, nil
}
