package seed

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Fixture is a declarative set of marketplace records to create.
type Fixture struct {
	Vendors []VendorFixture `json:"vendors"`
	RFQs    []RFQFixture    `json:"rfqs"`
}

// VendorFixture creates or replaces a vendor profile.
type VendorFixture struct {
	UserID      string   `json:"user_id"`
	CompanyName string   `json:"company_name"`
	PortsServed []string `json:"ports_served"`
}

// RFQFixture creates an RFQ and the quotes submitted against it.
type RFQFixture struct {
	BuyerUserID  string         `json:"buyer_user_id"`
	Title        string         `json:"title"`
	BuyerCompany string         `json:"buyer_company"`
	Port         string         `json:"port"`
	DeadlineDays int            `json:"deadline_days"`
	Tags         []string       `json:"tags"`
	Items        []ItemFixture  `json:"items"`
	Quotes       []QuoteFixture `json:"quotes"`
}

// ItemFixture is one requested line.
type ItemFixture struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	Essential bool   `json:"essential"`
}

// QuoteFixture is a vendor response. Accept turns it into an order.
type QuoteFixture struct {
	VendorUserID     string   `json:"vendor_user_id"`
	Currency         string   `json:"currency"`
	UnitPrices       []string `json:"unit_prices"`
	ShippingCost     string   `json:"shipping_cost"`
	DiscountPct      string   `json:"discount_pct"`
	TaxPct           string   `json:"tax_pct"`
	DeliveryTimeDays int      `json:"delivery_time_days"`
	Notes            string   `json:"notes"`
	Accept           bool     `json:"accept"`
}

// LoadFixture decodes a JSON fixture and checks its references.
func LoadFixture(r io.Reader) (Fixture, error) {
	var fixture Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fixture); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fixture.Validate(); err != nil {
		return Fixture{}, err
	}
	return fixture, nil
}

// Validate reports structural problems the API would reject late.
func (f Fixture) Validate() error {
	for i, vendor := range f.Vendors {
		if strings.TrimSpace(vendor.UserID) == "" {
			return fmt.Errorf("vendors[%d]: user_id is required", i)
		}
	}
	for i, rfq := range f.RFQs {
		if strings.TrimSpace(rfq.BuyerUserID) == "" {
			return fmt.Errorf("rfqs[%d]: buyer_user_id is required", i)
		}
		if len(rfq.Items) == 0 {
			return fmt.Errorf("rfqs[%d]: at least one item is required", i)
		}
		accepted := 0
		for j, quote := range rfq.Quotes {
			if strings.TrimSpace(quote.VendorUserID) == "" {
				return fmt.Errorf("rfqs[%d].quotes[%d]: vendor_user_id is required", i, j)
			}
			if len(quote.UnitPrices) != len(rfq.Items) {
				return fmt.Errorf("rfqs[%d].quotes[%d]: %d unit prices for %d items", i, j, len(quote.UnitPrices), len(rfq.Items))
			}
			if quote.Accept {
				accepted++
			}
		}
		if accepted > 1 {
			return fmt.Errorf("rfqs[%d]: at most one quote may be accepted", i)
		}
	}
	return nil
}

func (r RFQFixture) request() map[string]any {
	items := make([]map[string]any, 0, len(r.Items))
	for _, item := range r.Items {
		entry := map[string]any{
			"name":      item.Name,
			"unit":      item.Unit,
			"essential": item.Essential,
		}
		if item.Quantity != "" {
			entry["quantity"] = json.Number(item.Quantity)
		}
		items = append(items, entry)
	}
	body := map[string]any{
		"title":          r.Title,
		"buyer_company":  r.BuyerCompany,
		"port":           r.Port,
		"required_items": items,
		"tags":           r.Tags,
	}
	if r.DeadlineDays > 0 {
		body["deadline_days"] = r.DeadlineDays
	}
	return body
}

func (q QuoteFixture) request() map[string]any {
	prices := make([]json.Number, 0, len(q.UnitPrices))
	for _, price := range q.UnitPrices {
		prices = append(prices, json.Number(price))
	}
	body := map[string]any{
		"currency":    q.Currency,
		"unit_prices": prices,
		"notes":       q.Notes,
	}
	for key, value := range map[string]string{
		"shipping_cost": q.ShippingCost,
		"discount_pct":  q.DiscountPct,
		"tax_pct":       q.TaxPct,
	} {
		if value != "" {
			body[key] = json.Number(value)
		}
	}
	if q.DeliveryTimeDays > 0 {
		body["delivery_time_days"] = q.DeliveryTimeDays
	}
	return body
}

// DemoFixture is the default local dataset: two vendors, two RFQs and one
// accepted order.
func DemoFixture() Fixture {
	return Fixture{
		Vendors: []VendorFixture{
			{UserID: "vendor-demo-1", CompanyName: "Harbor Supply", PortsServed: []string{"Singapore", "Rotterdam"}},
			{UserID: "vendor-demo-2", CompanyName: "Keel & Co", PortsServed: []string{"Singapore"}},
		},
		RFQs: []RFQFixture{
			{
				BuyerUserID:  "buyer-demo-1",
				Title:        "Engine room spares",
				BuyerCompany: "Blue Meridian Shipping",
				Port:         "Singapore",
				DeadlineDays: 5,
				Tags:         []string{"engine", "urgent"},
				Items: []ItemFixture{
					{Name: "Fuel filter", Quantity: "12", Unit: "pieces", Essential: true},
					{Name: "Gasket set", Quantity: "4", Unit: "sets"},
				},
				Quotes: []QuoteFixture{
					{
						VendorUserID:     "vendor-demo-1",
						Currency:         "USD",
						UnitPrices:       []string{"18.50", "42.00"},
						ShippingCost:     "35.00",
						DiscountPct:      "5",
						TaxPct:           "7",
						DeliveryTimeDays: 2,
						Notes:            "Delivered alongside",
						Accept:           true,
					},
					{
						VendorUserID:     "vendor-demo-2",
						Currency:         "USD",
						UnitPrices:       []string{"17.90", "45.00"},
						ShippingCost:     "60.00",
						TaxPct:           "7",
						DeliveryTimeDays: 3,
					},
				},
			},
			{
				BuyerUserID:  "buyer-demo-1",
				Title:        "Galley provisions",
				BuyerCompany: "Blue Meridian Shipping",
				Port:         "Rotterdam",
				DeadlineDays: 10,
				Tags:         []string{"provisions"},
				Items: []ItemFixture{
					{Name: "Rice", Quantity: "200", Unit: "kg", Essential: true},
					{Name: "Coffee", Quantity: "25", Unit: "kg"},
					{Name: "Fresh fruit", Quantity: "80", Unit: "kg"},
				},
				Quotes: []QuoteFixture{
					{
						VendorUserID:     "vendor-demo-1",
						Currency:         "EUR",
						UnitPrices:       []string{"1.35", "11.20", "2.80"},
						ShippingCost:     "25.00",
						TaxPct:           "9",
						DeliveryTimeDays: 1,
					},
				},
			},
		},
	}
}
