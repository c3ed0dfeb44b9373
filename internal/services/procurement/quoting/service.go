// Package quoting runs the quote ledger and the acceptance coordinator.
//
// Money values are always recomputed from the RFQ's items and the vendor's
// unit prices; totals supplied by clients are never read. Acceptance turns
// one submitted quote into an order inside a single store transaction.
package quoting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/currency"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/id"
	"github.com/onemarinex/portside/internal/platform/otel"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/events"
	"github.com/onemarinex/portside/internal/services/procurement/pricing"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

const defaultCurrency = "USD"

var tracer = otel.Tracer("procurement/quoting")

// Store is the persistence the quote ledger needs.
type Store interface {
	GetRFQ(ctx context.Context, id string) (storage.RFQ, error)
	GetQuote(ctx context.Context, id string) (storage.Quote, error)
	UpsertQuote(ctx context.Context, quote storage.Quote, outbox storage.QuoteEventFunc) (storage.Quote, error)
	ListQuotesForRFQ(ctx context.Context, rfqID string) ([]storage.Quote, error)
	ListQuotesByVendor(ctx context.Context, vendorUserID string, rfqID string) ([]storage.Quote, error)
	WithdrawQuote(ctx context.Context, quoteID string, vendorUserID string, now time.Time, outbox storage.QuoteEventFunc) (storage.Quote, error)
	AcceptQuote(ctx context.Context, params storage.AcceptQuoteParams) (storage.Order, error)
}

// VendorProfiles resolves vendor gating and display data.
type VendorProfiles interface {
	GetVendorProfile(ctx context.Context, userID string) (storage.VendorProfile, error)
}

// Metrics counts quote ledger outcomes.
type Metrics interface {
	QuoteSubmitted()
	QuoteWithdrawn()
	QuoteAccepted()
	AcceptConflict()
}

// SubmitInput is a vendor's pricing for an RFQ. Only unit prices are taken
// per item; names, quantities and units come from the RFQ.
type SubmitInput struct {
	RFQID            string
	Currency         string
	ShippingCost     decimal.Decimal
	DiscountPct      decimal.Decimal
	TaxPct           decimal.Decimal
	DeliveryTimeDays *int
	Notes            string
	UnitPrices       []decimal.Decimal
}

// QuoteView is a stored quote decorated with the vendor's display name.
type QuoteView struct {
	storage.Quote
	VendorCompany string
}

// Service implements quote submission, listing, withdrawal and acceptance.
type Service struct {
	store   Store
	vendors VendorProfiles
	metrics Metrics
	clock   func() time.Time
	newID   func() (string, error)
}

// NewService creates a quoting service. metrics may be nil.
func NewService(store Store, vendors VendorProfiles, metrics Metrics) *Service {
	return &Service{
		store:   store,
		vendors: vendors,
		metrics: metrics,
		clock:   time.Now,
		newID:   id.NewID,
	}
}

// Submit creates the caller's quote for an RFQ or replaces it in place.
func (s *Service) Submit(ctx context.Context, caller domain.Caller, in SubmitInput) (view QuoteView, err error) {
	ctx, span := tracer.Start(ctx, "procurement.quoting.Submit")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return QuoteView{}, err
	}
	if !caller.IsVendor() {
		return QuoteView{}, apperrors.New(apperrors.CodeRoleNotAllowed, "only vendors can submit quotes")
	}
	rfq, err := s.getRFQ(ctx, in.RFQID)
	if err != nil {
		return QuoteView{}, err
	}
	span.SetAttributes(attribute.String("rfq.id", rfq.ID))

	profile, err := s.vendors.GetVendorProfile(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return QuoteView{}, apperrors.New(apperrors.CodeVendorProfileMissing, "complete your vendor profile before quoting")
		}
		return QuoteView{}, apperrors.Storage(fmt.Errorf("get vendor profile: %w", err))
	}
	if len(profile.PortsServed) > 0 && !servesPort(profile.PortsServed, rfq.Port) {
		return QuoteView{}, apperrors.WithMetadata(apperrors.CodeVendorPortNotServed, "vendor does not serve this port", map[string]string{"Port": rfq.Port})
	}
	if len(in.UnitPrices) != len(rfq.Items) {
		return QuoteView{}, apperrors.Field(
			apperrors.CodeQuoteItemCountMismatch,
			"unit_prices",
			fmt.Sprintf("expected %d unit prices, got %d", len(rfq.Items), len(in.UnitPrices)),
		)
	}

	code, err := parseCurrency(in.Currency)
	if err != nil {
		return QuoteView{}, err
	}
	if in.DeliveryTimeDays != nil && *in.DeliveryTimeDays < 1 {
		return QuoteView{}, apperrors.Field(apperrors.CodeInvalidArgument, "delivery_time_days", "delivery_time_days must be at least 1")
	}

	lines := make([]pricing.LineInput, 0, len(rfq.Items))
	for i, item := range rfq.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = fmt.Sprintf("Item %d", i+1)
		}
		lines = append(lines, pricing.LineInput{
			Name:      name,
			Unit:      item.Unit,
			Quantity:  item.Quantity,
			UnitPrice: in.UnitPrices[i],
		})
	}
	breakdown, err := pricing.Compute(lines, pricing.Terms{
		ShippingCost: in.ShippingCost,
		DiscountPct:  in.DiscountPct,
		TaxPct:       in.TaxPct,
	})
	if err != nil {
		return QuoteView{}, err
	}

	quoteID, err := s.newID()
	if err != nil {
		return QuoteView{}, apperrors.Storage(fmt.Errorf("generate quote id: %w", err))
	}
	now := s.now()
	items := make([]storage.QuoteItem, 0, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		items = append(items, storage.QuoteItem{
			Name:      line.Name,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	quote, err := s.store.UpsertQuote(ctx, storage.Quote{
		ID:               quoteID,
		RFQID:            rfq.ID,
		VendorUserID:     caller.UserID,
		Currency:         code,
		Items:            items,
		ShippingCost:     breakdown.ShippingCost,
		DiscountPct:      breakdown.DiscountPct,
		TaxPct:           breakdown.TaxPct,
		Subtotal:         breakdown.Subtotal,
		TaxAmount:        breakdown.TaxAmount,
		GrandTotal:       breakdown.GrandTotal,
		DeliveryTimeDays: in.DeliveryTimeDays,
		Notes:            strings.TrimSpace(in.Notes),
		Status:           domain.QuoteSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, events.QuoteSubmitted)
	if err != nil {
		if errors.Is(err, storage.ErrQuoteLocked) {
			return QuoteView{}, apperrors.New(apperrors.CodeQuoteLocked, "quote has already been decided and can no longer be replaced")
		}
		return QuoteView{}, apperrors.Storage(fmt.Errorf("upsert quote: %w", err))
	}
	if s.metrics != nil {
		s.metrics.QuoteSubmitted()
	}
	span.SetAttributes(attribute.String("quote.id", quote.ID))
	return QuoteView{Quote: quote, VendorCompany: profile.CompanyName}, nil
}

// ListForRFQ returns every quote on an RFQ, newest first. Only the RFQ's
// buyer and agents may list them.
func (s *Service) ListForRFQ(ctx context.Context, caller domain.Caller, rfqID string) (views []QuoteView, err error) {
	ctx, span := tracer.Start(ctx, "procurement.quoting.ListForRFQ")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return nil, err
	}
	rfq, err := s.getRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if !ownsRFQ(caller, rfq) {
		return nil, apperrors.New(apperrors.CodeNotResourceOwner, "only the RFQ owner or an agent can view its quotes")
	}
	quotes, err := s.store.ListQuotesForRFQ(ctx, rfq.ID)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list quotes: %w", err))
	}
	return s.decorate(ctx, quotes)
}

// ListMine returns the calling vendor's quotes, optionally for one RFQ.
func (s *Service) ListMine(ctx context.Context, caller domain.Caller, rfqID string) (views []QuoteView, err error) {
	ctx, span := tracer.Start(ctx, "procurement.quoting.ListMine")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsVendor() {
		return nil, apperrors.New(apperrors.CodeRoleNotAllowed, "only vendors have their own quotes")
	}
	quotes, err := s.store.ListQuotesByVendor(ctx, caller.UserID, strings.TrimSpace(rfqID))
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list vendor quotes: %w", err))
	}
	return s.decorate(ctx, quotes)
}

// Withdraw pulls the caller's submitted quote. A withdrawn quote can be
// submitted again but cannot be accepted.
func (s *Service) Withdraw(ctx context.Context, caller domain.Caller, quoteID string) (view QuoteView, err error) {
	ctx, span := tracer.Start(ctx, "procurement.quoting.Withdraw")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return QuoteView{}, err
	}
	if !caller.IsVendor() {
		return QuoteView{}, apperrors.New(apperrors.CodeRoleNotAllowed, "only vendors can withdraw quotes")
	}
	quote, err := s.store.WithdrawQuote(ctx, strings.TrimSpace(quoteID), caller.UserID, s.now(), events.QuoteWithdrawn)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return QuoteView{}, apperrors.New(apperrors.CodeQuoteNotFound, "quote not found")
		case errors.Is(err, storage.ErrQuoteLocked):
			return QuoteView{}, apperrors.New(apperrors.CodeQuoteLocked, "only submitted quotes can be withdrawn")
		default:
			return QuoteView{}, apperrors.Storage(fmt.Errorf("withdraw quote: %w", err))
		}
	}
	if s.metrics != nil {
		s.metrics.QuoteWithdrawn()
	}
	views, err := s.decorate(ctx, []storage.Quote{quote})
	if err != nil {
		return QuoteView{}, err
	}
	return views[0], nil
}

// Accept accepts one quote, rejects its submitted siblings and creates the
// order, all in one transaction. A second accept on the same RFQ is a
// conflict, never a repeat of the first result.
func (s *Service) Accept(ctx context.Context, caller domain.Caller, rfqID string, quoteID string) (order storage.Order, err error) {
	ctx, span := tracer.Start(ctx, "procurement.quoting.Accept")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return storage.Order{}, err
	}
	rfq, err := s.getRFQ(ctx, rfqID)
	if err != nil {
		return storage.Order{}, err
	}
	if !ownsRFQ(caller, rfq) {
		return storage.Order{}, apperrors.New(apperrors.CodeNotResourceOwner, "only the RFQ owner or an agent can accept quotes")
	}
	quoteID = strings.TrimSpace(quoteID)
	quote, err := s.store.GetQuote(ctx, quoteID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Order{}, apperrors.Storage(fmt.Errorf("get quote: %w", err))
	}
	if err != nil || quote.RFQID != rfq.ID {
		return storage.Order{}, apperrors.New(apperrors.CodeQuoteNotFound, "quote not found")
	}
	span.SetAttributes(attribute.String("rfq.id", rfq.ID), attribute.String("quote.id", quote.ID))

	vendorCompany, err := s.vendorCompany(ctx, quote.VendorUserID)
	if err != nil {
		return storage.Order{}, err
	}
	orderID, err := s.newID()
	if err != nil {
		return storage.Order{}, apperrors.Storage(fmt.Errorf("generate order id: %w", err))
	}
	now := s.now()
	order, err = s.store.AcceptQuote(ctx, storage.AcceptQuoteParams{
		RFQID:         rfq.ID,
		QuoteID:       quote.ID,
		OrderID:       orderID,
		OrderNumber:   OrderNumber(rfq.ID, quote.ID, now),
		BuyerUserID:   rfq.BuyerUserID,
		VendorCompany: vendorCompany,
		Port:          rfq.Port,
		Now:           now,
		Outbox:        events.OrderCreated,
	})
	if err != nil {
		return storage.Order{}, s.acceptError(err)
	}
	if s.metrics != nil {
		s.metrics.QuoteAccepted()
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *Service) acceptError(err error) error {
	var conflict error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.New(apperrors.CodeQuoteNotFound, "quote not found")
	case errors.Is(err, storage.ErrQuoteAlreadyAccepted):
		conflict = apperrors.New(apperrors.CodeQuoteAlreadyAccepted, "another quote on this RFQ is already accepted")
	case errors.Is(err, storage.ErrOrderExists), errors.Is(err, storage.ErrAlreadyExists):
		conflict = apperrors.New(apperrors.CodeOrderAlreadyExists, "an order already exists for this RFQ")
	case errors.Is(err, storage.ErrQuoteNotSubmitted):
		conflict = apperrors.New(apperrors.CodeQuoteNotSubmitted, "only submitted quotes can be accepted")
	default:
		return apperrors.Storage(fmt.Errorf("accept quote: %w", err))
	}
	if s.metrics != nil {
		s.metrics.AcceptConflict()
	}
	return conflict
}

// OrderNumber formats the order number for an accepted quote.
func OrderNumber(rfqID string, quoteID string, at time.Time) string {
	return fmt.Sprintf("ORD-%s-%s-%d", rfqID, quoteID, at.Unix())
}

func (s *Service) getRFQ(ctx context.Context, rfqID string) (storage.RFQ, error) {
	rfq, err := s.store.GetRFQ(ctx, strings.TrimSpace(rfqID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.RFQ{}, apperrors.New(apperrors.CodeRFQNotFound, "rfq not found")
		}
		return storage.RFQ{}, apperrors.Storage(fmt.Errorf("get rfq: %w", err))
	}
	return rfq, nil
}

func (s *Service) vendorCompany(ctx context.Context, vendorUserID string) (string, error) {
	if s.vendors == nil {
		return "", nil
	}
	profile, err := s.vendors.GetVendorProfile(ctx, vendorUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", apperrors.Storage(fmt.Errorf("get vendor profile: %w", err))
	}
	return profile.CompanyName, nil
}

func (s *Service) decorate(ctx context.Context, quotes []storage.Quote) ([]QuoteView, error) {
	companies := make(map[string]string)
	views := make([]QuoteView, 0, len(quotes))
	for _, quote := range quotes {
		company, ok := companies[quote.VendorUserID]
		if !ok {
			var err error
			company, err = s.vendorCompany(ctx, quote.VendorUserID)
			if err != nil {
				return nil, err
			}
			companies[quote.VendorUserID] = company
		}
		views = append(views, QuoteView{Quote: quote, VendorCompany: company})
	}
	return views, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func ownsRFQ(caller domain.Caller, rfq storage.RFQ) bool {
	return caller.IsAgent() || rfq.BuyerUserID == caller.UserID
}

func servesPort(ports []string, port string) bool {
	port = strings.TrimSpace(port)
	for _, served := range ports {
		if strings.EqualFold(strings.TrimSpace(served), port) {
			return true
		}
	}
	return false
}

func parseCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return defaultCurrency, nil
	}
	unit, err := currency.ParseISO(value)
	if err != nil {
		return "", apperrors.Field(apperrors.CodeInvalidCurrency, "currency", fmt.Sprintf("currency %q is not an ISO 4217 code", value))
	}
	return unit.String(), nil
}
