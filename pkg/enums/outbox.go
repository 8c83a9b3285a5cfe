package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateInventory OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInventory,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventPaymentSubmitted      OutboxEventType = "payment_submitted"
	EventPaymentVerified       OutboxEventType = "payment_verified"
	EventPaymentRejected       OutboxEventType = "payment_rejected"
	EventOrderClaimed          OutboxEventType = "order_claimed"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderStatusOverridden OutboxEventType = "order_status_overridden"
	EventStockAdjusted         OutboxEventType = "stock_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventPaymentSubmitted,
	EventPaymentVerified,
	EventPaymentRejected,
	EventOrderClaimed,
	EventOrderCancelled,
	EventOrderStatusOverridden,
	EventStockAdjusted,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
