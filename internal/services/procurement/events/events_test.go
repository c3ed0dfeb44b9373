package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

var eventTime = time.Date(2026, 5, 12, 9, 30, 0, 123456000, time.UTC)

func TestQuoteSubmittedEvent(t *testing.T) {
	t.Parallel()

	event, err := QuoteSubmitted(storage.Quote{
		ID:           "quote-1",
		RFQID:        "rfq-1",
		VendorUserID: "vendor-1",
		Currency:     "EUR",
		GrandTotal:   decimal.RequireFromString("736.16"),
		Status:       domain.QuoteSubmitted,
		UpdatedAt:    eventTime,
	})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if event.EventType != TypeQuoteSubmitted {
		t.Fatalf("type = %q, want %q", event.EventType, TypeQuoteSubmitted)
	}
	if event.AggregateID != "rfq-1" {
		t.Fatalf("aggregate = %q, want rfq-1", event.AggregateID)
	}
	if event.ID == "" || event.Status != storage.OutboxStatusPending {
		t.Fatalf("unexpected event header: %+v", event)
	}
	if want := "quote.submitted:quote-1:" + "1778578200123456"; event.DedupeKey != want {
		t.Fatalf("dedupe = %q, want %q", event.DedupeKey, want)
	}
	if !event.NextAttemptAt.Equal(eventTime) {
		t.Fatalf("next attempt = %v, want %v", event.NextAttemptAt, eventTime)
	}

	var payload QuotePayload
	if err := json.Unmarshal(event.PayloadJSON, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.GrandTotal != "736.16" || payload.Currency != "EUR" || payload.Status != "submitted" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestResubmissionGetsNewDedupeKey(t *testing.T) {
	t.Parallel()

	quote := storage.Quote{ID: "quote-1", RFQID: "rfq-1", UpdatedAt: eventTime}
	first, err := QuoteSubmitted(quote)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	quote.UpdatedAt = eventTime.Add(time.Second)
	second, err := QuoteSubmitted(quote)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.DedupeKey == second.DedupeKey {
		t.Fatalf("expected distinct dedupe keys, both %q", first.DedupeKey)
	}
}

func TestOrderEvents(t *testing.T) {
	t.Parallel()

	order := storage.Order{
		ID:          "order-1",
		OrderNumber: "ORD-rfq-1-quote-1-1778578200",
		RFQID:       "rfq-1",
		QuoteID:     "quote-1",
		GrandTotal:  decimal.RequireFromString("10"),
		Status:      domain.OrderConfirmed,
		CreatedAt:   eventTime,
		UpdatedAt:   eventTime,
	}

	created, err := OrderCreated(order)
	if err != nil {
		t.Fatalf("order created: %v", err)
	}
	if created.DedupeKey != "order.created:order-1" || created.AggregateID != "order-1" {
		t.Fatalf("unexpected created event: %+v", created)
	}
	var payload OrderPayload
	if err := json.Unmarshal(created.PayloadJSON, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.GrandTotal != "10.00" || payload.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected order payload: %+v", payload)
	}

	order.Status = domain.OrderFulfilled
	tracking, err := OrderEventAppended(order, storage.OrderEvent{
		ID:          42,
		OrderID:     "order-1",
		ActorUserID: "vendor-1",
		ActorRole:   domain.RoleVendor,
		Status:      domain.TrackingDelivered,
		CreatedAt:   eventTime,
	})
	if err != nil {
		t.Fatalf("tracking event: %v", err)
	}
	if tracking.DedupeKey != "order.event_appended:order-1:42" {
		t.Fatalf("dedupe = %q", tracking.DedupeKey)
	}
	var trackingPayload TrackingPayload
	if err := json.Unmarshal(tracking.PayloadJSON, &trackingPayload); err != nil {
		t.Fatalf("decode tracking: %v", err)
	}
	if trackingPayload.TrackingStatus != "delivered" || trackingPayload.OrderStatus != "fulfilled" {
		t.Fatalf("unexpected tracking payload: %+v", trackingPayload)
	}

	changed, err := OrderStatusChanged(order)
	if err != nil {
		t.Fatalf("status changed: %v", err)
	}
	if changed.EventType != TypeOrderStatusChanged || changed.AggregateID != "order-1" {
		t.Fatalf("unexpected status event: %+v", changed)
	}
}
