package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/services/procurement/pricing"
	"github.com/onemarinex/portside/internal/services/procurement/quoting"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

type rfqItemPayload struct {
	Name      string       `json:"name"`
	Quantity  *json.Number `json:"quantity,omitempty"`
	Unit      string       `json:"unit,omitempty"`
	Essential bool         `json:"essential"`
	SizeSpec  string       `json:"size_spec,omitempty"`
	Note      string       `json:"note,omitempty"`
}

type rfqTermsPayload struct {
	Delivery string `json:"delivery,omitempty"`
	Payment  string `json:"payment,omitempty"`
}

type createRFQRequest struct {
	Title         string           `json:"title"`
	BuyerCompany  string           `json:"buyer_company"`
	Port          string           `json:"port"`
	DeadlineDays  *int             `json:"deadline_days"`
	BudgetMin     *json.Number     `json:"budget_min"`
	BudgetMax     *json.Number     `json:"budget_max"`
	RequiredItems []rfqItemPayload `json:"required_items"`
	Tags          []string         `json:"tags"`
	Terms         rfqTermsPayload  `json:"terms"`
}

type rfqItemResponse struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
	Essential bool   `json:"essential"`
	SizeSpec  string `json:"size_spec,omitempty"`
	Note      string `json:"note,omitempty"`
}

type rfqResponse struct {
	ID            string            `json:"id"`
	BuyerUserID   string            `json:"buyer_user_id"`
	Title         string            `json:"title"`
	BuyerCompany  string            `json:"buyer_company,omitempty"`
	Port          string            `json:"port"`
	DeadlineDays  *int              `json:"deadline_days,omitempty"`
	BudgetMin     *string           `json:"budget_min,omitempty"`
	BudgetMax     *string           `json:"budget_max,omitempty"`
	RequiredItems []rfqItemResponse `json:"required_items"`
	Tags          []string          `json:"tags"`
	Terms         rfqTermsPayload   `json:"terms"`
	CreatedAt     string            `json:"created_at"`
}

type vendorProfileRequest struct {
	CompanyName string   `json:"company_name"`
	PortsServed []string `json:"ports_served"`
}

type vendorProfileResponse struct {
	UserID      string   `json:"user_id"`
	CompanyName string   `json:"company_name"`
	PortsServed []string `json:"ports_served"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// submitQuoteRequest carries only vendor-chosen values. Item names,
// quantities and totals are never read from the client.
type submitQuoteRequest struct {
	Currency         string        `json:"currency"`
	ShippingCost     json.Number   `json:"shipping_cost"`
	DiscountPct      json.Number   `json:"discount_pct"`
	TaxPct           json.Number   `json:"tax_pct"`
	DeliveryTimeDays *int          `json:"delivery_time_days"`
	Notes            string        `json:"notes"`
	UnitPrices       []json.Number `json:"unit_prices"`
}

type lineItemResponse struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type quoteResponse struct {
	ID               string             `json:"id"`
	RFQID            string             `json:"rfq_id"`
	VendorUserID     string             `json:"vendor_user_id"`
	VendorCompany    string             `json:"vendor_company,omitempty"`
	Currency         string             `json:"currency"`
	Items            []lineItemResponse `json:"items"`
	ShippingCost     string             `json:"shipping_cost"`
	DiscountPct      string             `json:"discount_pct"`
	TaxPct           string             `json:"tax_pct"`
	Subtotal         string             `json:"subtotal"`
	TaxAmount        string             `json:"tax_amount"`
	GrandTotal       string             `json:"grand_total"`
	DeliveryTimeDays *int               `json:"delivery_time_days,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	Status           string             `json:"status"`
	CreatedAt        string             `json:"created_at"`
	UpdatedAt        string             `json:"updated_at"`
}

type orderResponse struct {
	ID               string             `json:"id"`
	OrderNumber      string             `json:"order_number"`
	RFQID            string             `json:"rfq_id"`
	QuoteID          string             `json:"quote_id"`
	BuyerUserID      string             `json:"buyer_user_id"`
	VendorUserID     string             `json:"vendor_user_id"`
	VendorCompany    string             `json:"vendor_company,omitempty"`
	Port             string             `json:"port"`
	Currency         string             `json:"currency"`
	Items            []lineItemResponse `json:"items"`
	ShippingCost     string             `json:"shipping_cost"`
	DiscountPct      string             `json:"discount_pct"`
	TaxPct           string             `json:"tax_pct"`
	Subtotal         string             `json:"subtotal"`
	TaxAmount        string             `json:"tax_amount"`
	GrandTotal       string             `json:"grand_total"`
	DeliveryTimeDays *int               `json:"delivery_time_days,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	Status           string             `json:"status"`
	CreatedAt        string             `json:"created_at"`
	UpdatedAt        string             `json:"updated_at"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type appendEventRequest struct {
	Status      string  `json:"status"`
	Location    string  `json:"location"`
	HubName     string  `json:"hub_name"`
	Note        string  `json:"note"`
	DelayReason string  `json:"delay_reason"`
	DelayHours  *int    `json:"delay_hours"`
	ETA         *string `json:"eta"`
}

type orderEventResponse struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"order_id"`
	ActorUserID string  `json:"actor_user_id"`
	ActorRole   string  `json:"actor_role"`
	Status      string  `json:"status"`
	Location    string  `json:"location,omitempty"`
	HubName     string  `json:"hub_name,omitempty"`
	Note        string  `json:"note,omitempty"`
	DelayReason string  `json:"delay_reason,omitempty"`
	DelayHours  *int    `json:"delay_hours,omitempty"`
	ETA         *string `json:"eta,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type appendEventResponse struct {
	Event orderEventResponse `json:"event"`
	Order orderResponse      `json:"order"`
}

// amount reads an optional monetary or percentage value. An absent value is
// zero.
func amount(field string, value json.Number) (decimal.Decimal, error) {
	if strings.TrimSpace(value.String()) == "" {
		return decimal.Zero, nil
	}
	parsed, err := pricing.ParseAmount(value)
	if err != nil {
		return decimal.Zero, apperrors.Field(apperrors.CodeInvalidAmount, field, fmt.Sprintf("%s must be a decimal number: %v", field, err))
	}
	return parsed, nil
}

func optionalAmount(field string, value *json.Number) (*decimal.Decimal, error) {
	if value == nil || strings.TrimSpace(value.String()) == "" {
		return nil, nil
	}
	parsed, err := amount(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func optionalMoney(value decimal.NullDecimal) *string {
	if !value.Valid {
		return nil
	}
	formatted := pricing.Format(value.Decimal)
	return &formatted
}

func newRFQResponse(rfq storage.RFQ) rfqResponse {
	items := make([]rfqItemResponse, 0, len(rfq.Items))
	for _, item := range rfq.Items {
		items = append(items, rfqItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity.String(),
			Unit:      item.Unit,
			Essential: item.Essential,
			SizeSpec:  item.SizeSpec,
			Note:      item.Note,
		})
	}
	tags := rfq.Tags
	if tags == nil {
		tags = []string{}
	}
	return rfqResponse{
		ID:            rfq.ID,
		BuyerUserID:   rfq.BuyerUserID,
		Title:         rfq.Title,
		BuyerCompany:  rfq.BuyerCompany,
		Port:          rfq.Port,
		DeadlineDays:  rfq.DeadlineDays,
		BudgetMin:     optionalMoney(rfq.BudgetMin),
		BudgetMax:     optionalMoney(rfq.BudgetMax),
		RequiredItems: items,
		Tags:          tags,
		Terms:         rfqTermsPayload{Delivery: rfq.Terms.Delivery, Payment: rfq.Terms.Payment},
		CreatedAt:     formatTime(rfq.CreatedAt),
	}
}

func newVendorProfileResponse(profile storage.VendorProfile) vendorProfileResponse {
	ports := profile.PortsServed
	if ports == nil {
		ports = []string{}
	}
	return vendorProfileResponse{
		UserID:      profile.UserID,
		CompanyName: profile.CompanyName,
		PortsServed: ports,
		CreatedAt:   formatTime(profile.CreatedAt),
		UpdatedAt:   formatTime(profile.UpdatedAt),
	}
}

func newLineItems(items []storage.QuoteItem) []lineItemResponse {
	lines := make([]lineItemResponse, 0, len(items))
	for _, item := range items {
		lines = append(lines, lineItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity.String(),
			Unit:      item.Unit,
			UnitPrice: pricing.Format(item.UnitPrice),
			LineTotal: pricing.Format(item.LineTotal),
		})
	}
	return lines
}

func newQuoteResponse(view quoting.QuoteView) quoteResponse {
	quote := view.Quote
	return quoteResponse{
		ID:               quote.ID,
		RFQID:            quote.RFQID,
		VendorUserID:     quote.VendorUserID,
		VendorCompany:    view.VendorCompany,
		Currency:         quote.Currency,
		Items:            newLineItems(quote.Items),
		ShippingCost:     pricing.Format(quote.ShippingCost),
		DiscountPct:      pricing.Format(quote.DiscountPct),
		TaxPct:           pricing.Format(quote.TaxPct),
		Subtotal:         pricing.Format(quote.Subtotal),
		TaxAmount:        pricing.Format(quote.TaxAmount),
		GrandTotal:       pricing.Format(quote.GrandTotal),
		DeliveryTimeDays: quote.DeliveryTimeDays,
		Notes:            quote.Notes,
		Status:           string(quote.Status),
		CreatedAt:        formatTime(quote.CreatedAt),
		UpdatedAt:        formatTime(quote.UpdatedAt),
	}
}

func newQuoteResponses(views []quoting.QuoteView) []quoteResponse {
	out := make([]quoteResponse, 0, len(views))
	for _, view := range views {
		out = append(out, newQuoteResponse(view))
	}
	return out
}

func newOrderResponse(order storage.Order) orderResponse {
	return orderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		RFQID:            order.RFQID,
		QuoteID:          order.QuoteID,
		BuyerUserID:      order.BuyerUserID,
		VendorUserID:     order.VendorUserID,
		VendorCompany:    order.VendorCompany,
		Port:             order.Port,
		Currency:         order.Currency,
		Items:            newLineItems(order.Items),
		ShippingCost:     pricing.Format(order.ShippingCost),
		DiscountPct:      pricing.Format(order.DiscountPct),
		TaxPct:           pricing.Format(order.TaxPct),
		Subtotal:         pricing.Format(order.Subtotal),
		TaxAmount:        pricing.Format(order.TaxAmount),
		GrandTotal:       pricing.Format(order.GrandTotal),
		DeliveryTimeDays: order.DeliveryTimeDays,
		Notes:            order.Notes,
		Status:           string(order.Status),
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
	}
}

func newOrderEventResponse(event storage.OrderEvent) orderEventResponse {
	return orderEventResponse{
		ID:          event.ID,
		OrderID:     event.OrderID,
		ActorUserID: event.ActorUserID,
		ActorRole:   string(event.ActorRole),
		Status:      string(event.Status),
		Location:    event.Location,
		HubName:     event.HubName,
		Note:        event.Note,
		DelayReason: event.DelayReason,
		DelayHours:  event.DelayHours,
		ETA:         formatOptionalTime(event.ETA),
		CreatedAt:   formatTime(event.CreatedAt),
	}
}
