package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusmerch/checkout-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per successful checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderRef      string          `json:"order_ref"`
	UserID        uuid.UUID       `json:"user_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
	PromoCode     *string         `json:"promo_code,omitempty"`
	LineCount     int             `json:"line_count"`
}

// PaymentEvent covers submission, verification and rejection of a cashier payment.
type PaymentEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderRef      string              `json:"order_ref"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	ReferenceNo   *string             `json:"reference_no,omitempty"`
	ReviewNote    *string             `json:"review_note,omitempty"`
}

// OrderStatusChangedEvent records a lifecycle move outside the payment flow.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	OrderRef   string            `json:"order_ref"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// StockAdjustedEvent records a stock change, either set by an admin or
// returned by a cancelled order.
type StockAdjustedEvent struct {
	PurchasableUnitID uuid.UUID  `json:"purchasable_unit_id"`
	PreviousStock     int        `json:"previous_stock"`
	Stock             int        `json:"stock"`
	Reserved          int        `json:"reserved"`
	Reason            string     `json:"reason"`
	OrderID           *uuid.UUID `json:"order_id,omitempty"`
}

const (
	StockReasonManual         = "manual"
	StockReasonOrderCancelled = "order_cancelled"
)
