package domain

import (
	"fmt"
	"strings"
)

// QuoteStatus is the lifecycle state of a vendor quote.
type QuoteStatus string

const (
	QuoteSubmitted QuoteStatus = "submitted"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteWithdrawn QuoteStatus = "withdrawn"
)

// ParseQuoteStatus validates a quote status value.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	switch status := QuoteStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case QuoteSubmitted, QuoteAccepted, QuoteRejected, QuoteWithdrawn:
		return status, nil
	default:
		return "", fmt.Errorf("unknown quote status %q", value)
	}
}

// OrderStatus is the coarse order status used for reporting.
type OrderStatus string

const (
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderFulfilled  OrderStatus = "fulfilled"
	OrderCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus validates a coarse order status.
func ParseOrderStatus(value string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case OrderConfirmed, OrderProcessing, OrderFulfilled, OrderCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown order status %q", value)
	}
}

// TrackingStatus is the fine-grained status carried by tracking events.
type TrackingStatus string

const (
	TrackingProcessing     TrackingStatus = "processing"
	TrackingPacked         TrackingStatus = "packed"
	TrackingDepartedOrigin TrackingStatus = "departed_origin"
	TrackingArrivedHub     TrackingStatus = "arrived_hub"
	TrackingCustomsCleared TrackingStatus = "customs_cleared"
	TrackingInTransit      TrackingStatus = "in_transit"
	TrackingOutForDelivery TrackingStatus = "out_for_delivery"
	TrackingDelivered      TrackingStatus = "delivered"
	TrackingDelayed        TrackingStatus = "delayed"
	TrackingCancelled      TrackingStatus = "cancelled"
)

var trackingToOrder = map[TrackingStatus]OrderStatus{
	TrackingProcessing:     OrderProcessing,
	TrackingPacked:         OrderProcessing,
	TrackingDepartedOrigin: OrderProcessing,
	TrackingArrivedHub:     OrderProcessing,
	TrackingCustomsCleared: OrderProcessing,
	TrackingInTransit:      OrderProcessing,
	TrackingOutForDelivery: OrderProcessing,
	TrackingDelayed:        OrderProcessing,
	TrackingDelivered:      OrderFulfilled,
	TrackingCancelled:      OrderCancelled,
}

// ParseTrackingStatus validates a tracking status.
func ParseTrackingStatus(value string) (TrackingStatus, error) {
	status := TrackingStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := trackingToOrder[status]; !ok {
		return "", fmt.Errorf("unknown tracking status %q", value)
	}
	return status, nil
}

// OrderStatus returns the coarse order status this tracking status implies.
// The mapping is applied on every append regardless of the order's current
// status, so a late in_transit moves a fulfilled order back to processing.
func (s TrackingStatus) OrderStatus() OrderStatus {
	return trackingToOrder[s]
}
