package enums

import "fmt"

// OrderStatus tracks the lifecycle of a merch order from checkout to pickup.
type OrderStatus string

const (
	OrderStatusPendingPayment         OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaymentForVerification OrderStatus = "PAYMENT_FOR_VERIFICATION"
	OrderStatusPaidForPickup          OrderStatus = "PAID_FOR_PICKUP"
	OrderStatusClaimed                OrderStatus = "CLAIMED"
	OrderStatusCancelled              OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaymentForVerification,
	OrderStatusPaidForPickup,
	OrderStatusClaimed,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no guarded transition leaves this status.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusClaimed || o == OrderStatusCancelled
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), validOrderStatuses...)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
