// Package rfqs owns buyer-authored requests for quotation and who may see them.
package rfqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/id"
	"github.com/onemarinex/portside/internal/platform/otel"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

var tracer = otel.Tracer("procurement/rfqs")

// VendorProfiles resolves the ports a vendor serves.
type VendorProfiles interface {
	GetVendorProfile(ctx context.Context, userID string) (storage.VendorProfile, error)
}

// ItemInput is one requested line as supplied by the buyer.
type ItemInput struct {
	Name      string
	Quantity  *decimal.Decimal
	Unit      string
	Essential bool
	SizeSpec  string
	Note      string
}

// CreateInput carries the fields of a new RFQ.
type CreateInput struct {
	Title        string
	BuyerCompany string
	Port         string
	DeadlineDays *int
	BudgetMin    *decimal.Decimal
	BudgetMax    *decimal.Decimal
	Items        []ItemInput
	Tags         []string
	Terms        storage.RFQTerms
}

// Service creates RFQs and applies RFQ visibility.
type Service struct {
	store   storage.RFQStore
	vendors VendorProfiles
	clock   func() time.Time
	newID   func() (string, error)
}

// NewService creates an RFQ service.
func NewService(store storage.RFQStore, vendors VendorProfiles) *Service {
	return &Service{
		store:   store,
		vendors: vendors,
		clock:   time.Now,
		newID:   id.NewID,
	}
}

// Create stores a new RFQ authored by a shipping company or agent.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (rfq storage.RFQ, err error) {
	ctx, span := tracer.Start(ctx, "procurement.rfqs.Create")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return storage.RFQ{}, err
	}
	if !caller.IsBuyer() && !caller.IsAgent() {
		return storage.RFQ{}, apperrors.New(apperrors.CodeRoleNotAllowed, "only shipping companies and agents can create RFQs")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return storage.RFQ{}, apperrors.Field(apperrors.CodeInvalidArgument, "title", "title is required")
	}
	port := strings.TrimSpace(in.Port)
	if port == "" {
		return storage.RFQ{}, apperrors.Field(apperrors.CodeInvalidArgument, "port", "port is required")
	}
	if in.DeadlineDays != nil && *in.DeadlineDays < 1 {
		return storage.RFQ{}, apperrors.Field(apperrors.CodeInvalidArgument, "deadline_days", "deadline_days must be at least 1")
	}
	budgetMin, err := budget("budget_min", in.BudgetMin)
	if err != nil {
		return storage.RFQ{}, err
	}
	budgetMax, err := budget("budget_max", in.BudgetMax)
	if err != nil {
		return storage.RFQ{}, err
	}
	if budgetMin.Valid && budgetMax.Valid && budgetMin.Decimal.GreaterThan(budgetMax.Decimal) {
		return storage.RFQ{}, apperrors.Field(apperrors.CodeRFQBudgetRangeInvalid, "budget_max", "budget_min must not exceed budget_max")
	}
	items, err := normalizeItems(in.Items)
	if err != nil {
		return storage.RFQ{}, err
	}

	rfqID, err := s.newID()
	if err != nil {
		return storage.RFQ{}, apperrors.Storage(fmt.Errorf("generate rfq id: %w", err))
	}
	rfq = storage.RFQ{
		ID:           rfqID,
		BuyerUserID:  caller.UserID,
		Title:        title,
		BuyerCompany: strings.TrimSpace(in.BuyerCompany),
		Port:         port,
		DeadlineDays: in.DeadlineDays,
		BudgetMin:    budgetMin,
		BudgetMax:    budgetMax,
		Items:        items,
		Tags:         normalizeTags(in.Tags),
		Terms: storage.RFQTerms{
			Delivery: strings.TrimSpace(in.Terms.Delivery),
			Payment:  strings.TrimSpace(in.Terms.Payment),
		},
		CreatedAt: s.now(),
	}
	span.SetAttributes(attribute.String("rfq.id", rfq.ID), attribute.Int("rfq.items", len(items)))
	if err := s.store.CreateRFQ(ctx, rfq); err != nil {
		return storage.RFQ{}, apperrors.Storage(fmt.Errorf("create rfq: %w", err))
	}
	return rfq, nil
}

// Get returns one RFQ. RFQs the caller may not see are reported as missing.
func (s *Service) Get(ctx context.Context, caller domain.Caller, rfqID string) (rfq storage.RFQ, err error) {
	ctx, span := tracer.Start(ctx, "procurement.rfqs.Get")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return storage.RFQ{}, err
	}
	rfq, err = s.store.GetRFQ(ctx, strings.TrimSpace(rfqID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.RFQ{}, apperrors.New(apperrors.CodeRFQNotFound, "rfq not found")
		}
		return storage.RFQ{}, apperrors.Storage(fmt.Errorf("get rfq: %w", err))
	}
	visible, err := s.Visible(ctx, caller, rfq)
	if err != nil {
		return storage.RFQ{}, err
	}
	if !visible {
		return storage.RFQ{}, apperrors.New(apperrors.CodeRFQNotFound, "rfq not found")
	}
	return rfq, nil
}

// Visible reports whether caller may read rfq: its owner, any agent, or a
// vendor serving its port. Vendors without a profile or without declared
// ports see every RFQ.
func (s *Service) Visible(ctx context.Context, caller domain.Caller, rfq storage.RFQ) (bool, error) {
	switch {
	case caller.IsAgent():
		return true, nil
	case caller.IsBuyer():
		return rfq.BuyerUserID == caller.UserID, nil
	case caller.IsVendor():
		ports, err := s.vendorPorts(ctx, caller.UserID)
		if err != nil {
			return false, err
		}
		return len(ports) == 0 || servesPort(ports, rfq.Port), nil
	default:
		return false, nil
	}
}

// List returns the RFQs visible to caller, newest first.
func (s *Service) List(ctx context.Context, caller domain.Caller) (rfqs []storage.RFQ, err error) {
	ctx, span := tracer.Start(ctx, "procurement.rfqs.List")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return nil, err
	}
	var query storage.RFQQuery
	switch {
	case caller.IsAgent():
	case caller.IsBuyer():
		query.BuyerUserID = caller.UserID
	case caller.IsVendor():
		ports, err := s.vendorPorts(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		query.Ports = ports
	default:
		return []storage.RFQ{}, nil
	}
	rfqs, err = s.store.ListRFQs(ctx, query)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list rfqs: %w", err))
	}
	span.SetAttributes(attribute.Int("rfq.count", len(rfqs)))
	return rfqs, nil
}

func (s *Service) vendorPorts(ctx context.Context, vendorUserID string) ([]string, error) {
	if s.vendors == nil {
		return nil, nil
	}
	profile, err := s.vendors.GetVendorProfile(ctx, vendorUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Storage(fmt.Errorf("get vendor profile: %w", err))
	}
	return profile.PortsServed, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
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

func budget(field string, value *decimal.Decimal) (decimal.NullDecimal, error) {
	if value == nil {
		return decimal.NullDecimal{}, nil
	}
	if value.IsNegative() {
		return decimal.NullDecimal{}, apperrors.Field(apperrors.CodeInvalidAmount, field, field+" must not be negative")
	}
	return decimal.NewNullDecimal(value.Round(2)), nil
}

func normalizeItems(inputs []ItemInput) ([]storage.RFQItem, error) {
	if len(inputs) == 0 {
		return nil, apperrors.Field(apperrors.CodeRFQItemsRequired, "required_items", "at least one item is required")
	}
	items := make([]storage.RFQItem, 0, len(inputs))
	for i, input := range inputs {
		prefix := fmt.Sprintf("required_items[%d]", i)
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, apperrors.Field(apperrors.CodeInvalidArgument, prefix+".name", prefix+".name is required")
		}
		quantity := decimal.NewFromInt(1)
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		if quantity.IsNegative() {
			return nil, apperrors.Field(apperrors.CodeInvalidAmount, prefix+".quantity", prefix+".quantity must not be negative")
		}
		unit, err := domain.ParseUnit(input.Unit)
		if err != nil {
			return nil, apperrors.Field(apperrors.CodeInvalidArgument, prefix+".unit", err.Error())
		}
		items = append(items, storage.RFQItem{
			Name:      name,
			Quantity:  quantity,
			Unit:      string(unit),
			Essential: input.Essential,
			SizeSpec:  strings.TrimSpace(input.SizeSpec),
			Note:      strings.TrimSpace(input.Note),
		})
	}
	return items, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
