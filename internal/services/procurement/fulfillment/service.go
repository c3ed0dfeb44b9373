// Package fulfillment runs the order and tracking ledger.
//
// Orders are read and mutated with role scoping: buyers reach the orders
// they placed, vendors the orders they fulfil, agents every order.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/otel"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/events"
	"github.com/onemarinex/portside/internal/services/procurement/filter"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

// MaxDelayHours bounds the delay reported on a tracking event.
const MaxDelayHours = 8760

var tracer = otel.Tracer("procurement/fulfillment")

// Store is the persistence the order ledger needs.
type Store interface {
	GetOrder(ctx context.Context, id string) (storage.Order, error)
	ListOrders(ctx context.Context, query storage.OrderQuery) ([]storage.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, now time.Time, outbox storage.OrderEventFunc) (storage.Order, error)
	AppendOrderEvent(ctx context.Context, event storage.OrderEvent, outbox storage.TrackingEventFunc) (storage.OrderEvent, storage.Order, error)
	ListOrderEvents(ctx context.Context, orderID string) ([]storage.OrderEvent, error)
}

// Metrics counts order ledger mutations.
type Metrics interface {
	OrderStatusSet(status string)
	OrderEventAppended(trackingStatus string)
}

// ListInput narrows an order listing.
type ListInput struct {
	Status string
	Filter string
}

// EventInput is one tracking update posted against an order.
type EventInput struct {
	Status      string
	Location    string
	HubName     string
	Note        string
	DelayReason string
	DelayHours  *int
	ETA         *time.Time
}

// Service implements order reads, status overrides and the tracking timeline.
type Service struct {
	store   Store
	metrics Metrics
	clock   func() time.Time
}

// NewService creates a fulfillment service. metrics may be nil.
func NewService(store Store, metrics Metrics) *Service {
	return &Service{
		store:   store,
		metrics: metrics,
		clock:   time.Now,
	}
}

// Get returns one order the caller may see.
func (s *Service) Get(ctx context.Context, caller domain.Caller, orderID string) (order storage.Order, err error) {
	ctx, span := tracer.Start(ctx, "procurement.fulfillment.Get")
	defer func() { otel.Finish(span, err) }()

	return s.authorizedOrder(ctx, caller, orderID)
}

// List returns the caller's orders newest first. Role scoping is applied on
// top of the status and filter arguments.
func (s *Service) List(ctx context.Context, caller domain.Caller, in ListInput) (orders []storage.Order, err error) {
	ctx, span := tracer.Start(ctx, "procurement.fulfillment.List")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return nil, err
	}

	query := storage.OrderQuery{}
	switch {
	case caller.IsAgent():
	case caller.IsBuyer():
		query.BuyerUserID = caller.UserID
	case caller.IsVendor():
		query.VendorUserID = caller.UserID
	default:
		return []storage.Order{}, nil
	}

	if raw := strings.TrimSpace(in.Status); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return nil, apperrors.Field(apperrors.CodeInvalidStatus, "status", err.Error())
		}
		query.Status = status
	}
	condition, err := filter.ParseOrderFilter(in.Filter)
	if err != nil {
		return nil, apperrors.Field(apperrors.CodeInvalidFilter, "filter", err.Error())
	}
	query.Filter = condition

	orders, err = s.store.ListOrders(ctx, query)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list orders: %w", err))
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// UpdateStatus overrides the coarse order status. The tracking timeline is
// left untouched.
func (s *Service) UpdateStatus(ctx context.Context, caller domain.Caller, orderID string, status string) (order storage.Order, err error) {
	ctx, span := tracer.Start(ctx, "procurement.fulfillment.UpdateStatus")
	defer func() { otel.Finish(span, err) }()

	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return storage.Order{}, apperrors.Field(apperrors.CodeInvalidStatus, "status", err.Error())
	}
	current, err := s.authorizedOrder(ctx, caller, orderID)
	if err != nil {
		return storage.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", current.ID), attribute.String("order.status", string(next)))

	order, err = s.store.UpdateOrderStatus(ctx, current.ID, next, s.now(), events.OrderStatusChanged)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Order{}, apperrors.New(apperrors.CodeOrderNotFound, "order not found")
		}
		return storage.Order{}, apperrors.Storage(fmt.Errorf("update order status: %w", err))
	}
	if s.metrics != nil {
		s.metrics.OrderStatusSet(string(order.Status))
	}
	return order, nil
}

// AppendEvent records a tracking event stamped with the caller and applies
// the coarse status its tracking status maps to.
func (s *Service) AppendEvent(ctx context.Context, caller domain.Caller, orderID string, in EventInput) (event storage.OrderEvent, order storage.Order, err error) {
	ctx, span := tracer.Start(ctx, "procurement.fulfillment.AppendEvent")
	defer func() { otel.Finish(span, err) }()

	status, err := domain.ParseTrackingStatus(in.Status)
	if err != nil {
		return storage.OrderEvent{}, storage.Order{}, apperrors.Field(apperrors.CodeInvalidStatus, "status", err.Error())
	}
	if in.DelayHours != nil && (*in.DelayHours < 0 || *in.DelayHours > MaxDelayHours) {
		return storage.OrderEvent{}, storage.Order{}, apperrors.Field(
			apperrors.CodeTrackingDelayHoursRange,
			"delay_hours",
			fmt.Sprintf("delay_hours must be between 0 and %d", MaxDelayHours),
		)
	}
	current, err := s.authorizedOrder(ctx, caller, orderID)
	if err != nil {
		return storage.OrderEvent{}, storage.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", current.ID), attribute.String("tracking.status", string(status)))

	var eta *time.Time
	if in.ETA != nil {
		value := in.ETA.UTC()
		eta = &value
	}
	event, order, err = s.store.AppendOrderEvent(ctx, storage.OrderEvent{
		OrderID:     current.ID,
		ActorUserID: caller.UserID,
		ActorRole:   caller.Role,
		Status:      status,
		Location:    strings.TrimSpace(in.Location),
		HubName:     strings.TrimSpace(in.HubName),
		Note:        strings.TrimSpace(in.Note),
		DelayReason: strings.TrimSpace(in.DelayReason),
		DelayHours:  in.DelayHours,
		ETA:         eta,
		CreatedAt:   s.now(),
	}, events.OrderEventAppended)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.OrderEvent{}, storage.Order{}, apperrors.New(apperrors.CodeOrderNotFound, "order not found")
		}
		return storage.OrderEvent{}, storage.Order{}, apperrors.Storage(fmt.Errorf("append order event: %w", err))
	}
	if s.metrics != nil {
		s.metrics.OrderEventAppended(string(event.Status))
	}
	return event, order, nil
}

// ListEvents returns the order's tracking timeline, oldest first.
func (s *Service) ListEvents(ctx context.Context, caller domain.Caller, orderID string) (timeline []storage.OrderEvent, err error) {
	ctx, span := tracer.Start(ctx, "procurement.fulfillment.ListEvents")
	defer func() { otel.Finish(span, err) }()

	order, err := s.authorizedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	timeline, err = s.store.ListOrderEvents(ctx, order.ID)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("list order events: %w", err))
	}
	return timeline, nil
}

// CanAccess reports whether the caller is a party to the order or an agent.
func CanAccess(caller domain.Caller, order storage.Order) bool {
	switch {
	case caller.IsAgent():
		return true
	case caller.IsBuyer():
		return order.BuyerUserID == caller.UserID
	case caller.IsVendor():
		return order.VendorUserID == caller.UserID
	default:
		return false
	}
}

func (s *Service) authorizedOrder(ctx context.Context, caller domain.Caller, orderID string) (storage.Order, error) {
	if err := domain.RequireCaller(caller); err != nil {
		return storage.Order{}, err
	}
	order, err := s.store.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Order{}, apperrors.New(apperrors.CodeOrderNotFound, "order not found")
		}
		return storage.Order{}, apperrors.Storage(fmt.Errorf("get order: %w", err))
	}
	if !CanAccess(caller, order) {
		return storage.Order{}, apperrors.New(apperrors.CodeNotResourceOwner, "order belongs to another party")
	}
	return order, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
