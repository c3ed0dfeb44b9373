// Package storage defines persistence contracts for procurement state.
//
// Multi-row mutations (quote upsert, quote acceptance, tracking append) are
// single store calls so that each implementation can run them in one
// transaction together with their outbox rows.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/filter"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrQuoteLocked indicates the quote can no longer be replaced or withdrawn.
	ErrQuoteLocked = errors.New("quote is locked")
	// ErrQuoteAlreadyAccepted indicates another quote on the RFQ is accepted.
	ErrQuoteAlreadyAccepted = errors.New("another quote is already accepted")
	// ErrOrderExists indicates the RFQ already has an order.
	ErrOrderExists = errors.New("order already exists for rfq")
	// ErrQuoteNotSubmitted indicates the quote is not in the submitted state.
	ErrQuoteNotSubmitted = errors.New("quote is not submitted")
)

// RFQItem is one required line of an RFQ.
type RFQItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
	Essential bool            `json:"essential"`
	SizeSpec  string          `json:"size_spec,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RFQTerms are the buyer's free-form commercial terms.
type RFQTerms struct {
	Delivery string `json:"delivery,omitempty"`
	Payment  string `json:"payment,omitempty"`
}

// RFQ is a buyer-authored request for quotation.
type RFQ struct {
	ID           string
	BuyerUserID  string
	Title        string
	BuyerCompany string
	Port         string
	DeadlineDays *int
	BudgetMin    decimal.NullDecimal
	BudgetMax    decimal.NullDecimal
	Items        []RFQItem
	Tags         []string
	Terms        RFQTerms
	CreatedAt    time.Time
}

// RFQQuery scopes an RFQ listing. An empty query lists every RFQ.
type RFQQuery struct {
	BuyerUserID string
	// Ports restricts results to RFQs whose port matches one of the values,
	// compared case-insensitively.
	Ports []string
}

// VendorProfile is the vendor directory entry used to gate and decorate quotes.
type VendorProfile struct {
	UserID      string
	CompanyName string
	PortsServed []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QuoteItem is one computed quote line. Orders copy these verbatim.
type QuoteItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Quote is a vendor's priced response to an RFQ.
type Quote struct {
	ID               string
	RFQID            string
	VendorUserID     string
	Currency         string
	Items            []QuoteItem
	ShippingCost     decimal.Decimal
	DiscountPct      decimal.Decimal
	TaxPct           decimal.Decimal
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	GrandTotal       decimal.Decimal
	DeliveryTimeDays *int
	Notes            string
	Status           domain.QuoteStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order is the immutable commercial record created by quote acceptance.
type Order struct {
	ID               string
	OrderNumber      string
	RFQID            string
	QuoteID          string
	BuyerUserID      string
	VendorUserID     string
	VendorCompany    string
	Port             string
	Currency         string
	Items            []QuoteItem
	ShippingCost     decimal.Decimal
	DiscountPct      decimal.Decimal
	TaxPct           decimal.Decimal
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	GrandTotal       decimal.Decimal
	DeliveryTimeDays *int
	Notes            string
	Status           domain.OrderStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderQuery scopes an order listing. Empty user ids mean unrestricted.
type OrderQuery struct {
	BuyerUserID  string
	VendorUserID string
	Status       domain.OrderStatus
	Filter       filter.SQLCondition
}

// OrderEvent is one append-only tracking timeline entry.
type OrderEvent struct {
	ID          int64
	OrderID     string
	ActorUserID string
	ActorRole   domain.Role
	Status      domain.TrackingStatus
	Location    string
	HubName     string
	Note        string
	DelayReason string
	DelayHours  *int
	ETA         *time.Time
	CreatedAt   time.Time
}

// Outbox statuses.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusLeased    = "leased"
	OutboxStatusSucceeded = "succeeded"
	OutboxStatusDead      = "dead"
)

// OutboxEvent is one domain event awaiting relay to the broker.
type OutboxEvent struct {
	ID             string
	EventType      string
	AggregateID    string
	PayloadJSON    []byte
	DedupeKey      string
	Status         string
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QuoteEventFunc builds the outbox row written with a quote mutation.
type QuoteEventFunc func(Quote) (OutboxEvent, error)

// OrderEventFunc builds the outbox row written with an order mutation.
type OrderEventFunc func(Order) (OutboxEvent, error)

// TrackingEventFunc builds the outbox row written with a tracking append.
type TrackingEventFunc func(Order, OrderEvent) (OutboxEvent, error)

// AcceptQuoteParams carries the order header decided by the caller. The
// store copies every commercial field from the quote row it locks.
type AcceptQuoteParams struct {
	RFQID         string
	QuoteID       string
	OrderID       string
	OrderNumber   string
	BuyerUserID   string
	VendorCompany string
	Port          string
	Now           time.Time
	Outbox        OrderEventFunc
}

// RFQStore persists RFQs.
type RFQStore interface {
	CreateRFQ(ctx context.Context, rfq RFQ) error
	GetRFQ(ctx context.Context, id string) (RFQ, error)
	ListRFQs(ctx context.Context, query RFQQuery) ([]RFQ, error)
}

// VendorStore persists vendor profiles.
type VendorStore interface {
	PutVendorProfile(ctx context.Context, profile VendorProfile) (VendorProfile, error)
	GetVendorProfile(ctx context.Context, userID string) (VendorProfile, error)
}

// QuoteStore persists quotes and runs the acceptance transaction.
type QuoteStore interface {
	// UpsertQuote inserts or replaces the quote for (rfq, vendor), keeping the
	// existing id and created_at. Returns ErrQuoteLocked when the existing
	// quote is accepted or rejected.
	UpsertQuote(ctx context.Context, quote Quote, outbox QuoteEventFunc) (Quote, error)
	GetQuote(ctx context.Context, id string) (Quote, error)
	ListQuotesForRFQ(ctx context.Context, rfqID string) ([]Quote, error)
	ListQuotesByVendor(ctx context.Context, vendorUserID string, rfqID string) ([]Quote, error)
	WithdrawQuote(ctx context.Context, quoteID string, vendorUserID string, now time.Time, outbox QuoteEventFunc) (Quote, error)
	// AcceptQuote accepts the quote, rejects submitted siblings, and inserts
	// the order in one transaction. Returns ErrNotFound,
	// ErrQuoteAlreadyAccepted, ErrOrderExists, or ErrQuoteNotSubmitted without
	// side effects.
	AcceptQuote(ctx context.Context, params AcceptQuoteParams) (Order, error)
}

// OrderStore persists orders and their tracking timeline.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, query OrderQuery) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, now time.Time, outbox OrderEventFunc) (Order, error)
	// AppendOrderEvent stores the event and applies its mapped coarse status
	// to the order in the same transaction.
	AppendOrderEvent(ctx context.Context, event OrderEvent, outbox TrackingEventFunc) (OrderEvent, Order, error)
	ListOrderEvents(ctx context.Context, orderID string) ([]OrderEvent, error)
}

// OutboxStore leases and settles outbox rows for the relay worker.
type OutboxStore interface {
	GetOutboxEvent(ctx context.Context, id string) (OutboxEvent, error)
	LeaseOutboxEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]OutboxEvent, error)
	MarkOutboxSucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error
	MarkOutboxRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkOutboxDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error
}

// Store is the full procurement persistence surface.
type Store interface {
	RFQStore
	VendorStore
	QuoteStore
	OrderStore
	OutboxStore
	Close() error
}
