// Package events builds procurement domain events for the transactional
// outbox and relays committed rows to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/onemarinex/portside/internal/platform/id"
	"github.com/onemarinex/portside/internal/services/procurement/pricing"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

// Event types written to the outbox.
const (
	TypeQuoteSubmitted     = "quote.submitted"
	TypeQuoteWithdrawn     = "quote.withdrawn"
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderEventAppended = "order.event_appended"
)

// QuotePayload is published for quote lifecycle events.
type QuotePayload struct {
	QuoteID      string `json:"quote_id"`
	RFQID        string `json:"rfq_id"`
	VendorUserID string `json:"vendor_user_id"`
	Currency     string `json:"currency"`
	GrandTotal   string `json:"grand_total"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}

// OrderPayload is published when an order is created or its status changes.
type OrderPayload struct {
	OrderID      string `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	RFQID        string `json:"rfq_id"`
	QuoteID      string `json:"quote_id"`
	BuyerUserID  string `json:"buyer_user_id"`
	VendorUserID string `json:"vendor_user_id"`
	Port         string `json:"port"`
	Currency     string `json:"currency"`
	GrandTotal   string `json:"grand_total"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}

// TrackingPayload is published for each appended tracking event.
type TrackingPayload struct {
	OrderID        string `json:"order_id"`
	EventID        int64  `json:"event_id"`
	TrackingStatus string `json:"tracking_status"`
	OrderStatus    string `json:"order_status"`
	ActorUserID    string `json:"actor_user_id"`
	ActorRole      string `json:"actor_role"`
	Location       string `json:"location,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// QuoteSubmitted builds the outbox row for a quote submission or replacement.
func QuoteSubmitted(quote storage.Quote) (storage.OutboxEvent, error) {
	return quoteEvent(TypeQuoteSubmitted, quote)
}

// QuoteWithdrawn builds the outbox row for a quote withdrawal.
func QuoteWithdrawn(quote storage.Quote) (storage.OutboxEvent, error) {
	return quoteEvent(TypeQuoteWithdrawn, quote)
}

func quoteEvent(eventType string, quote storage.Quote) (storage.OutboxEvent, error) {
	payload := QuotePayload{
		QuoteID:      quote.ID,
		RFQID:        quote.RFQID,
		VendorUserID: quote.VendorUserID,
		Currency:     quote.Currency,
		GrandTotal:   pricing.Format(quote.GrandTotal),
		Status:       string(quote.Status),
		OccurredAt:   formatTime(quote.UpdatedAt),
	}
	dedupe := fmt.Sprintf("%s:%s:%d", eventType, quote.ID, quote.UpdatedAt.UnixMicro())
	return newOutboxEvent(eventType, quote.RFQID, dedupe, quote.UpdatedAt, payload)
}

// OrderCreated builds the outbox row for an order created by acceptance.
func OrderCreated(order storage.Order) (storage.OutboxEvent, error) {
	return newOutboxEvent(TypeOrderCreated, order.ID, TypeOrderCreated+":"+order.ID, order.CreatedAt, orderPayload(order))
}

// OrderStatusChanged builds the outbox row for a manual status override.
func OrderStatusChanged(order storage.Order) (storage.OutboxEvent, error) {
	dedupe := fmt.Sprintf("%s:%s:%s:%d", TypeOrderStatusChanged, order.ID, order.Status, order.UpdatedAt.UnixMicro())
	return newOutboxEvent(TypeOrderStatusChanged, order.ID, dedupe, order.UpdatedAt, orderPayload(order))
}

// OrderEventAppended builds the outbox row for a tracking event append.
func OrderEventAppended(order storage.Order, event storage.OrderEvent) (storage.OutboxEvent, error) {
	payload := TrackingPayload{
		OrderID:        order.ID,
		EventID:        event.ID,
		TrackingStatus: string(event.Status),
		OrderStatus:    string(order.Status),
		ActorUserID:    event.ActorUserID,
		ActorRole:      string(event.ActorRole),
		Location:       event.Location,
		OccurredAt:     formatTime(event.CreatedAt),
	}
	dedupe := fmt.Sprintf("%s:%s:%d", TypeOrderEventAppended, order.ID, event.ID)
	return newOutboxEvent(TypeOrderEventAppended, order.ID, dedupe, event.CreatedAt, payload)
}

func orderPayload(order storage.Order) OrderPayload {
	return OrderPayload{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		RFQID:        order.RFQID,
		QuoteID:      order.QuoteID,
		BuyerUserID:  order.BuyerUserID,
		VendorUserID: order.VendorUserID,
		Port:         order.Port,
		Currency:     order.Currency,
		GrandTotal:   pricing.Format(order.GrandTotal),
		Status:       string(order.Status),
		OccurredAt:   formatTime(order.UpdatedAt),
	}
}

func newOutboxEvent(eventType string, aggregateID string, dedupeKey string, at time.Time, payload any) (storage.OutboxEvent, error) {
	eventID, err := id.NewID()
	if err != nil {
		return storage.OutboxEvent{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return storage.OutboxEvent{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	at = at.UTC()
	return storage.OutboxEvent{
		ID:            eventID,
		EventType:     eventType,
		AggregateID:   aggregateID,
		PayloadJSON:   data,
		DedupeKey:     dedupeKey,
		Status:        storage.OutboxStatusPending,
		NextAttemptAt: at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
