// Package pricing computes quote money values with exact decimal arithmetic.
//
// The order of operations is fixed: line totals, subtotal, discount, shipping,
// tax, grand total. Each rounding step uses round-half-up to two places;
// changing the order shifts results by up to a cent per line.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
)

// MaxAmount is the largest value any money field, quantity or derived total
// may hold. It matches the NUMERIC(14, 2) storage columns.
var MaxAmount = decimal.RequireFromString("999999999999.99")

const (
	// maxAmountChars bounds the raw text before it reaches the decimal parser.
	maxAmountChars = 64

	// Exponent bounds keep rescaling during rounding and comparison cheap.
	maxExponent = 12
	minExponent = -18
)

var (
	errAmountTooLarge   = fmt.Errorf("must not exceed %s", MaxAmount.StringFixed(2))
	errAmountTooPrecise = fmt.Errorf("must have at most %d decimal places", -minExponent)
)

var hundred = decimal.NewFromInt(100)

// bounded rejects values outside the storable range. Zero of any exponent
// comes back as plain zero.
func bounded(value decimal.Decimal) (decimal.Decimal, error) {
	if value.IsZero() {
		return decimal.Zero, nil
	}
	exp := value.Exponent()
	if exp > maxExponent {
		return decimal.Zero, errAmountTooLarge
	}
	if exp < minExponent {
		return decimal.Zero, errAmountTooPrecise
	}
	if value.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, errAmountTooLarge
	}
	return value, nil
}

func checkAmount(field string, value decimal.Decimal) (decimal.Decimal, error) {
	value, err := bounded(value)
	if err != nil {
		return decimal.Zero, apperrors.Field(apperrors.CodeInvalidAmount, field, field+" "+err.Error())
	}
	return value, nil
}

// Round2 rounds to two decimal places, half away from zero. Amounts are never
// negative, so this is round-half-up.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// Percent returns round2(base × pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Shift(-2))
}

// ParseAmount reads an exact decimal from a JSON number or string. Values
// outside ±MaxAmount or with more than 18 decimal places are rejected before
// any arithmetic touches them.
func ParseAmount(value json.Number) (decimal.Decimal, error) {
	raw := strings.TrimSpace(value.String())
	if raw == "" {
		return decimal.Zero, errors.New("amount is empty")
	}
	if len(raw) > maxAmountChars {
		return decimal.Zero, fmt.Errorf("amount must be at most %d characters", maxAmountChars)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	amount, err = bounded(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %w", err)
	}
	return amount, nil
}

// FromFloat converts a float using its shortest round-tripping decimal form,
// so 12.345 becomes exactly 12.345 rather than its binary approximation.
func FromFloat(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// Format renders an amount with exactly two decimals.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// LineInput is one priced item before computation.
type LineInput struct {
	Name      string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Line is one computed quote line.
type Line struct {
	Name      string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Terms are the vendor-supplied commercial adjustments.
type Terms struct {
	ShippingCost decimal.Decimal
	DiscountPct  decimal.Decimal
	TaxPct       decimal.Decimal
}

// Breakdown is the authoritative money result for a quote.
type Breakdown struct {
	Lines          []Line
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Discounted     decimal.Decimal
	ShippingCost   decimal.Decimal
	TaxableBase    decimal.Decimal
	DiscountPct    decimal.Decimal
	TaxPct         decimal.Decimal
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
}

// Compute validates terms and prices, then derives every money field.
//
// Negative quantities clamp to zero. The stored unit price is rounded to two
// places, but the line total multiplies the price as submitted. Percentages
// carry at most two decimal places so the stored rates reproduce the totals.
func Compute(inputs []LineInput, terms Terms) (Breakdown, error) {
	discountPct, err := validatePercent("discount_pct", terms.DiscountPct)
	if err != nil {
		return Breakdown{}, err
	}
	taxPct, err := validatePercent("tax_pct", terms.TaxPct)
	if err != nil {
		return Breakdown{}, err
	}
	shippingCost, err := checkAmount("shipping_cost", terms.ShippingCost)
	if err != nil {
		return Breakdown{}, err
	}
	if shippingCost.IsNegative() {
		return Breakdown{}, apperrors.Field(apperrors.CodeInvalidAmount, "shipping_cost", "shipping_cost must not be negative")
	}

	lines := make([]Line, 0, len(inputs))
	subtotal := decimal.Zero
	for i, input := range inputs {
		field := fmt.Sprintf("unit_prices[%d]", i)
		unitPrice, err := checkAmount(field, input.UnitPrice)
		if err != nil {
			return Breakdown{}, err
		}
		if unitPrice.IsNegative() {
			return Breakdown{}, apperrors.Field(apperrors.CodeInvalidAmount, field, field+" must not be negative")
		}
		quantity, err := checkAmount(fmt.Sprintf("items[%d].quantity", i), input.Quantity)
		if err != nil {
			return Breakdown{}, err
		}
		if quantity.IsNegative() {
			quantity = decimal.Zero
		}
		lineTotal := Round2(quantity.Mul(unitPrice))
		if lineTotal.GreaterThan(MaxAmount) {
			return Breakdown{}, apperrors.Field(apperrors.CodeInvalidAmount, field, field+" line total "+errAmountTooLarge.Error())
		}
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, Line{
			Name:      input.Name,
			Unit:      input.Unit,
			Quantity:  quantity,
			UnitPrice: Round2(unitPrice),
			LineTotal: lineTotal,
		})
	}

	discountAmount := Percent(subtotal, discountPct)
	discounted := subtotal.Sub(discountAmount)
	shipping := Round2(shippingCost)
	taxableBase := discounted.Add(shipping)
	taxAmount := Percent(taxableBase, taxPct)
	grandTotal := taxableBase.Add(taxAmount)
	if subtotal.GreaterThan(MaxAmount) || grandTotal.GreaterThan(MaxAmount) {
		return Breakdown{}, apperrors.Field(apperrors.CodeInvalidAmount, "grand_total", "grand_total "+errAmountTooLarge.Error())
	}

	return Breakdown{
		Lines:          lines,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Discounted:     discounted,
		ShippingCost:   shipping,
		TaxableBase:    taxableBase,
		DiscountPct:    discountPct,
		TaxPct:         taxPct,
		TaxAmount:      taxAmount,
		GrandTotal:     grandTotal,
	}, nil
}

func validatePercent(field string, value decimal.Decimal) (decimal.Decimal, error) {
	value, err := bounded(value)
	if err != nil || value.IsNegative() || value.GreaterThan(hundred) {
		return decimal.Zero, apperrors.Field(apperrors.CodePercentageOutOfRange, field, field+" must be between 0 and 100")
	}
	if !value.Equal(value.Round(2)) {
		return decimal.Zero, apperrors.Field(apperrors.CodePercentageOutOfRange, field, field+" must have at most two decimal places")
	}
	return value, nil
}
