// Package httpapi exposes the procurement services as a JSON HTTP API.
//
// Every route requires a bearer credential. Money values are rendered as
// strings with exactly two decimals and request amounts are decoded without
// passing through float64.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/onemarinex/portside/internal/platform/httpx"
	"github.com/onemarinex/portside/internal/platform/requestctx"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/fulfillment"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/services/procurement/quoting"
	"github.com/onemarinex/portside/internal/services/procurement/rfqs"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/vendors"
)

// Authenticator resolves a raw bearer token into a caller.
type Authenticator interface {
	Resolve(token string) (domain.Caller, error)
}

// RFQService is the RFQ book.
type RFQService interface {
	Create(ctx context.Context, caller domain.Caller, in rfqs.CreateInput) (storage.RFQ, error)
	Get(ctx context.Context, caller domain.Caller, rfqID string) (storage.RFQ, error)
	List(ctx context.Context, caller domain.Caller) ([]storage.RFQ, error)
}

// VendorService is the vendor directory.
type VendorService interface {
	Upsert(ctx context.Context, caller domain.Caller, in vendors.UpsertInput) (storage.VendorProfile, error)
	Get(ctx context.Context, userID string) (storage.VendorProfile, error)
}

// QuoteService is the quote ledger and acceptance coordinator.
type QuoteService interface {
	Submit(ctx context.Context, caller domain.Caller, in quoting.SubmitInput) (quoting.QuoteView, error)
	ListForRFQ(ctx context.Context, caller domain.Caller, rfqID string) ([]quoting.QuoteView, error)
	ListMine(ctx context.Context, caller domain.Caller, rfqID string) ([]quoting.QuoteView, error)
	Withdraw(ctx context.Context, caller domain.Caller, quoteID string) (quoting.QuoteView, error)
	Accept(ctx context.Context, caller domain.Caller, rfqID string, quoteID string) (storage.Order, error)
}

// OrderService is the order and tracking ledger.
type OrderService interface {
	Get(ctx context.Context, caller domain.Caller, orderID string) (storage.Order, error)
	List(ctx context.Context, caller domain.Caller, in fulfillment.ListInput) ([]storage.Order, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, orderID string, status string) (storage.Order, error)
	AppendEvent(ctx context.Context, caller domain.Caller, orderID string, in fulfillment.EventInput) (storage.OrderEvent, storage.Order, error)
	ListEvents(ctx context.Context, caller domain.Caller, orderID string) ([]storage.OrderEvent, error)
}

// Deps wires the API to its services.
type Deps struct {
	Auth    Authenticator
	RFQs    RFQService
	Vendors VendorService
	Quotes  QuoteService
	Orders  OrderService
}

// Server routes API requests to the procurement services.
type Server struct {
	auth    Authenticator
	rfqs    RFQService
	vendors VendorService
	quotes  QuoteService
	orders  OrderService
}

// NewServer creates an API server.
func NewServer(deps Deps) *Server {
	return &Server{
		auth:    deps.Auth,
		rfqs:    deps.RFQs,
		vendors: deps.Vendors,
		quotes:  deps.Quotes,
		orders:  deps.Orders,
	}
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller domain.Caller)

// Routes registers every API route on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /api/rfqs", s.authenticated(s.handleCreateRFQ))
	mux.Handle("GET /api/rfqs", s.authenticated(s.handleListRFQs))
	mux.Handle("GET /api/rfqs/{rfq_id}", s.authenticated(s.handleGetRFQ))

	mux.Handle("PUT /api/vendor/profile", s.authenticated(s.handlePutVendorProfile))
	mux.Handle("GET /api/vendor/profile", s.authenticated(s.handleGetVendorProfile))

	mux.Handle("POST /api/rfqs/{rfq_id}/quotes", s.authenticated(s.handleSubmitQuote))
	mux.Handle("GET /api/rfqs/{rfq_id}/quotes", s.authenticated(s.handleListRFQQuotes))
	mux.Handle("POST /api/rfqs/{rfq_id}/quotes/{quote_id}/accept", s.authenticated(s.handleAcceptQuote))
	mux.Handle("GET /api/quotes/mine", s.authenticated(s.handleListMyQuotes))
	mux.Handle("POST /api/quotes/{quote_id}/withdraw", s.authenticated(s.handleWithdrawQuote))

	mux.Handle("GET /api/orders", s.authenticated(s.handleListOrders))
	mux.Handle("GET /api/orders/{order_id}", s.authenticated(s.handleGetOrder))
	mux.Handle("PATCH /api/orders/{order_id}/status", s.authenticated(s.handleUpdateOrderStatus))
	mux.Handle("POST /api/orders/{order_id}/events", s.authenticated(s.handleAppendOrderEvent))
	mux.Handle("GET /api/orders/{order_id}/events", s.authenticated(s.handleListOrderEvents))

	return mux
}

// authenticated resolves the bearer credential and stores the caller in the
// request context before running next.
func (s *Server) authenticated(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.auth.Resolve(identity.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="portside"`)
			httpx.WriteError(w, r, err)
			return
		}
		ctx := requestctx.WithUserID(r.Context(), caller.UserID)
		ctx = requestctx.WithRole(ctx, string(caller.Role))
		next(w, r.WithContext(ctx), caller)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		log.Printf("write response path=%s request_id=%s err=%v", r.URL.Path, requestctx.RequestIDFromContext(r.Context()), err)
	}
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := formatTime(*value)
	return &formatted
}
