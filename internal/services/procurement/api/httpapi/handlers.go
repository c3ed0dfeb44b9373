package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/httpx"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/fulfillment"
	"github.com/onemarinex/portside/internal/services/procurement/quoting"
	"github.com/onemarinex/portside/internal/services/procurement/rfqs"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/vendors"
)

func (s *Server) handleCreateRFQ(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req createRFQRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	rfq, err := s.rfqs.Create(r.Context(), caller, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newRFQResponse(rfq))
}

func (req createRFQRequest) input() (rfqs.CreateInput, error) {
	budgetMin, err := optionalAmount("budget_min", req.BudgetMin)
	if err != nil {
		return rfqs.CreateInput{}, err
	}
	budgetMax, err := optionalAmount("budget_max", req.BudgetMax)
	if err != nil {
		return rfqs.CreateInput{}, err
	}
	items := make([]rfqs.ItemInput, 0, len(req.RequiredItems))
	for _, item := range req.RequiredItems {
		quantity, err := optionalAmount("quantity", item.Quantity)
		if err != nil {
			return rfqs.CreateInput{}, err
		}
		items = append(items, rfqs.ItemInput{
			Name:      item.Name,
			Quantity:  quantity,
			Unit:      item.Unit,
			Essential: item.Essential,
			SizeSpec:  item.SizeSpec,
			Note:      item.Note,
		})
	}
	return rfqs.CreateInput{
		Title:        req.Title,
		BuyerCompany: req.BuyerCompany,
		Port:         req.Port,
		DeadlineDays: req.DeadlineDays,
		BudgetMin:    budgetMin,
		BudgetMax:    budgetMax,
		Items:        items,
		Tags:         req.Tags,
		Terms:        storage.RFQTerms{Delivery: req.Terms.Delivery, Payment: req.Terms.Payment},
	}, nil
}

func (s *Server) handleListRFQs(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	list, err := s.rfqs.List(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]rfqResponse, 0, len(list))
	for _, rfq := range list {
		out = append(out, newRFQResponse(rfq))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"rfqs": out})
}

func (s *Server) handleGetRFQ(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	rfq, err := s.rfqs.Get(r.Context(), caller, r.PathValue("rfq_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newRFQResponse(rfq))
}

func (s *Server) handlePutVendorProfile(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req vendorProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	profile, err := s.vendors.Upsert(r.Context(), caller, vendors.UpsertInput{
		CompanyName: req.CompanyName,
		PortsServed: req.PortsServed,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newVendorProfileResponse(profile))
}

func (s *Server) handleGetVendorProfile(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	profile, err := s.vendors.Get(r.Context(), caller.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newVendorProfileResponse(profile))
}

func (s *Server) handleSubmitQuote(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req submitQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in, err := req.input(r.PathValue("rfq_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	view, err := s.quotes.Submit(r.Context(), caller, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newQuoteResponse(view))
}

func (req submitQuoteRequest) input(rfqID string) (quoting.SubmitInput, error) {
	shipping, err := amount("shipping_cost", req.ShippingCost)
	if err != nil {
		return quoting.SubmitInput{}, err
	}
	discount, err := amount("discount_pct", req.DiscountPct)
	if err != nil {
		return quoting.SubmitInput{}, err
	}
	tax, err := amount("tax_pct", req.TaxPct)
	if err != nil {
		return quoting.SubmitInput{}, err
	}
	prices := make([]decimal.Decimal, 0, len(req.UnitPrices))
	for i, raw := range req.UnitPrices {
		price, err := amount(fmt.Sprintf("unit_prices[%d]", i), raw)
		if err != nil {
			return quoting.SubmitInput{}, err
		}
		prices = append(prices, price)
	}
	return quoting.SubmitInput{
		RFQID:            rfqID,
		Currency:         req.Currency,
		ShippingCost:     shipping,
		DiscountPct:      discount,
		TaxPct:           tax,
		DeliveryTimeDays: req.DeliveryTimeDays,
		Notes:            req.Notes,
		UnitPrices:       prices,
	}, nil
}

func (s *Server) handleListRFQQuotes(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	views, err := s.quotes.ListForRFQ(r.Context(), caller, r.PathValue("rfq_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"quotes": newQuoteResponses(views)})
}

func (s *Server) handleListMyQuotes(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	views, err := s.quotes.ListMine(r.Context(), caller, r.URL.Query().Get("rfq_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"quotes": newQuoteResponses(views)})
}

func (s *Server) handleWithdrawQuote(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	view, err := s.quotes.Withdraw(r.Context(), caller, r.PathValue("quote_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newQuoteResponse(view))
}

func (s *Server) handleAcceptQuote(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	order, err := s.quotes.Accept(r.Context(), caller, r.PathValue("rfq_id"), r.PathValue("quote_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	query := r.URL.Query()
	orders, err := s.orders.List(r.Context(), caller, fulfillment.ListInput{
		Status: query.Get("status"),
		Filter: query.Get("filter"),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, newOrderResponse(order))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"orders": out})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	order, err := s.orders.Get(r.Context(), caller, r.PathValue("order_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	order, err := s.orders.UpdateStatus(r.Context(), caller, r.PathValue("order_id"), req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleAppendOrderEvent(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req appendEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var eta *time.Time
	if req.ETA != nil && strings.TrimSpace(*req.ETA) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ETA))
		if err != nil {
			httpx.WriteError(w, r, apperrors.Field(apperrors.CodeInvalidArgument, "eta", "eta must be an RFC 3339 timestamp"))
			return
		}
		eta = &parsed
	}
	event, order, err := s.orders.AppendEvent(r.Context(), caller, r.PathValue("order_id"), fulfillment.EventInput{
		Status:      req.Status,
		Location:    req.Location,
		HubName:     req.HubName,
		Note:        req.Note,
		DelayReason: req.DelayReason,
		DelayHours:  req.DelayHours,
		ETA:         eta,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, appendEventResponse{
		Event: newOrderEventResponse(event),
		Order: newOrderResponse(order),
	})
}

func (s *Server) handleListOrderEvents(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	timeline, err := s.orders.ListEvents(r.Context(), caller, r.PathValue("order_id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]orderEventResponse, 0, len(timeline))
	for _, event := range timeline {
		out = append(out, newOrderEventResponse(event))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"events": out})
}
