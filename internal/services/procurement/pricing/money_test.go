package pricing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func assertAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if Format(got) != want {
		t.Fatalf("%s = %s, want %s", name, Format(got), want)
	}
}

func TestComputePipeAndValveScenario(t *testing.T) {
	t.Parallel()

	breakdown, err := Compute([]LineInput{
		{Name: "Pipe", Unit: "meters", Quantity: dec(t, "10"), UnitPrice: dec(t, "12.345")},
		{Name: "Valve", Unit: "units", Quantity: dec(t, "2"), UnitPrice: dec(t, "300.00")},
	}, Terms{
		ShippingCost: dec(t, "50"),
		DiscountPct:  dec(t, "10"),
		TaxPct:       dec(t, "5"),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	assertAmount(t, "line_total[0]", breakdown.Lines[0].LineTotal, "123.45")
	assertAmount(t, "line_total[1]", breakdown.Lines[1].LineTotal, "600.00")
	assertAmount(t, "subtotal", breakdown.Subtotal, "723.45")
	assertAmount(t, "discount_amount", breakdown.DiscountAmount, "72.35")
	assertAmount(t, "discounted", breakdown.Discounted, "651.10")
	assertAmount(t, "taxable_base", breakdown.TaxableBase, "701.10")
	assertAmount(t, "tax_amount", breakdown.TaxAmount, "35.06")
	assertAmount(t, "grand_total", breakdown.GrandTotal, "736.16")
}

func TestRound2IsHalfUp(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"72.345":  "72.35",
		"35.055":  "35.06",
		"2.675":   "2.68",
		"0.125":   "0.13",
		"0.124":   "0.12",
		"10.005":  "10.01",
		"99.9949": "99.99",
	}
	for in, want := range tests {
		assertAmount(t, "Round2("+in+")", Round2(dec(t, in)), want)
	}
}

func TestComputeIgnoresFloatRepresentation(t *testing.T) {
	t.Parallel()

	// 12.345 and 2.675 are not exactly representable in binary floating point.
	breakdown, err := Compute([]LineInput{
		{Name: "Pipe", Quantity: FromFloat(10), UnitPrice: FromFloat(12.345)},
		{Name: "Rope", Quantity: FromFloat(1), UnitPrice: FromFloat(2.675)},
	}, Terms{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertAmount(t, "line_total[0]", breakdown.Lines[0].LineTotal, "123.45")
	assertAmount(t, "line_total[1]", breakdown.Lines[1].LineTotal, "2.68")
	assertAmount(t, "subtotal", breakdown.Subtotal, "126.13")
}

func TestComputeSubtotalEqualsSumOfLines(t *testing.T) {
	t.Parallel()

	inputs := make([]LineInput, 0, 250)
	for i := 0; i < 250; i++ {
		inputs = append(inputs, LineInput{Quantity: dec(t, "3"), UnitPrice: dec(t, "0.1")})
	}
	breakdown, err := Compute(inputs, Terms{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	sum := decimal.Zero
	for _, line := range breakdown.Lines {
		assertAmount(t, "line_total", line.LineTotal, "0.30")
		sum = sum.Add(line.LineTotal)
	}
	if !sum.Equal(breakdown.Subtotal) {
		t.Fatalf("subtotal = %s, want sum %s", breakdown.Subtotal, sum)
	}
	assertAmount(t, "subtotal", breakdown.Subtotal, "75.00")
}

func TestComputeClampsNegativeQuantityAndRoundsStoredPrice(t *testing.T) {
	t.Parallel()

	breakdown, err := Compute([]LineInput{
		{Name: "Bolt", Quantity: dec(t, "-4"), UnitPrice: dec(t, "1.50")},
		{Name: "Nut", Quantity: dec(t, "3"), UnitPrice: dec(t, "0.333")},
	}, Terms{ShippingCost: dec(t, "9.999")})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !breakdown.Lines[0].Quantity.IsZero() {
		t.Fatalf("quantity = %s, want 0", breakdown.Lines[0].Quantity)
	}
	assertAmount(t, "line_total[0]", breakdown.Lines[0].LineTotal, "0.00")
	assertAmount(t, "unit_price[1]", breakdown.Lines[1].UnitPrice, "0.33")
	// 3 × 0.333 = 0.999 uses the submitted price, not the rounded one.
	assertAmount(t, "line_total[1]", breakdown.Lines[1].LineTotal, "1.00")
	assertAmount(t, "shipping_cost", breakdown.ShippingCost, "10.00")
	assertAmount(t, "grand_total", breakdown.GrandTotal, "11.00")
}

func TestComputeRejectsInvalidTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		terms Terms
		price string
		field string
		code  apperrors.Code
	}{
		{"discount above 100", Terms{DiscountPct: dec(t, "100.01")}, "1", "discount_pct", apperrors.CodePercentageOutOfRange},
		{"negative tax", Terms{TaxPct: dec(t, "-1")}, "1", "tax_pct", apperrors.CodePercentageOutOfRange},
		{"negative shipping", Terms{ShippingCost: dec(t, "-0.01")}, "1", "shipping_cost", apperrors.CodeInvalidAmount},
		{"negative price", Terms{}, "-2", "unit_prices[0]", apperrors.CodeInvalidAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute([]LineInput{{Quantity: dec(t, "1"), UnitPrice: dec(t, tc.price)}}, tc.terms)
			if apperrors.CodeOf(err) != tc.code {
				t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), tc.code)
			}
			var appErr *apperrors.Error
			if !asAppError(err, &appErr) || appErr.Metadata["Field"] != tc.field {
				t.Fatalf("field metadata = %v, want %q", err, tc.field)
			}
		})
	}
}

func TestComputeRejectsOutOfRangeAmounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		quantity string
		price    string
		terms    Terms
		field    string
		code     apperrors.Code
	}{
		{"huge exponent price", "1", "1e200000000", Terms{}, "unit_prices[0]", apperrors.CodeInvalidAmount},
		{"large exponent price", "1", "1e400", Terms{}, "unit_prices[0]", apperrors.CodeInvalidAmount},
		{"tiny exponent price", "1", "1e-400", Terms{}, "unit_prices[0]", apperrors.CodeInvalidAmount},
		{"price one cent over", "1", "1000000000000.00", Terms{}, "unit_prices[0]", apperrors.CodeInvalidAmount},
		{"quantity one cent over", "1000000000000.00", "1", Terms{}, "items[0].quantity", apperrors.CodeInvalidAmount},
		{"line total over", "1000000", "1000000", Terms{}, "unit_prices[0]", apperrors.CodeInvalidAmount},
		{"grand total over", "1", "999999999999.99", Terms{ShippingCost: dec(t, "0.01")}, "grand_total", apperrors.CodeInvalidAmount},
		{"shipping exponent", "1", "1", Terms{ShippingCost: dec(t, "1e400")}, "shipping_cost", apperrors.CodeInvalidAmount},
		{"tax exponent", "1", "1", Terms{TaxPct: dec(t, "1e-400")}, "tax_pct", apperrors.CodePercentageOutOfRange},
		{"discount three places", "1", "1", Terms{DiscountPct: dec(t, "12.345")}, "discount_pct", apperrors.CodePercentageOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inputs := []LineInput{{Quantity: dec(t, tc.quantity), UnitPrice: dec(t, tc.price)}}
			done := make(chan error, 1)
			go func() {
				_, err := Compute(inputs, tc.terms)
				done <- err
			}()
			var err error
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("compute did not return")
			}
			if apperrors.CodeOf(err) != tc.code {
				t.Fatalf("code = %q, want %q (err %v)", apperrors.CodeOf(err), tc.code, err)
			}
			var appErr *apperrors.Error
			if !asAppError(err, &appErr) || appErr.Metadata["Field"] != tc.field {
				t.Fatalf("field metadata = %v, want %q", err, tc.field)
			}
		})
	}
}

func TestComputeAcceptsMaxAmountAndTwoPlacePercentages(t *testing.T) {
	t.Parallel()

	breakdown, err := Compute([]LineInput{{Quantity: dec(t, "1"), UnitPrice: MaxAmount}}, Terms{
		DiscountPct: dec(t, "12.50"),
		TaxPct:      dec(t, "0.000"),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertAmount(t, "subtotal", breakdown.Subtotal, "999999999999.99")
	if breakdown.DiscountPct.String() != "12.5" {
		t.Fatalf("discount_pct = %s, want 12.5", breakdown.DiscountPct)
	}
	if !breakdown.TaxPct.IsZero() {
		t.Fatalf("tax_pct = %s, want 0", breakdown.TaxPct)
	}
}

func TestComputeAcceptsBoundaryPercentages(t *testing.T) {
	t.Parallel()

	breakdown, err := Compute([]LineInput{{Quantity: dec(t, "1"), UnitPrice: dec(t, "80")}}, Terms{
		DiscountPct: dec(t, "100"),
		TaxPct:      dec(t, "0"),
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertAmount(t, "grand_total", breakdown.GrandTotal, "0.00")
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	got, err := ParseAmount(json.Number("12.345"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.String() != "12.345" {
		t.Fatalf("amount = %s, want 12.345", got)
	}
	if _, err := ParseAmount(json.Number("twelve")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseAmount(json.Number(" ")); err == nil {
		t.Fatal("expected empty amount error")
	}
	for _, raw := range []string{"1e200000000", "1e400", "1e-400", "1000000000000.00", "-1000000000000", strings.Repeat("1", 65)} {
		if _, err := ParseAmount(json.Number(raw)); err == nil {
			t.Fatalf("ParseAmount(%.20s) expected range error", raw)
		}
	}
	zero, err := ParseAmount(json.Number("0e200000000"))
	if err != nil || !zero.IsZero() || zero.Exponent() > maxExponent {
		t.Fatalf("ParseAmount(0e200000000) = exp %d, %v", zero.Exponent(), err)
	}
}

func asAppError(err error, target **apperrors.Error) bool {
	appErr, ok := err.(*apperrors.Error)
	if ok {
		*target = appErr
	}
	return ok
}
