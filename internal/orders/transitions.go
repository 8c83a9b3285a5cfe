package orders

import "github.com/campusmerch/checkout-backend/pkg/enums"

// transitions is the order lifecycle graph. PAYMENT_FOR_VERIFICATION ->
// PENDING_PAYMENT is the only back-edge and covers a rejected payment.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPaymentForVerification,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentForVerification: {
		enums.OrderStatusPaidForPickup,
		enums.OrderStatusPendingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaidForPickup: {
		enums.OrderStatusClaimed,
	},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from status in one step.
func NextStatuses(status enums.OrderStatus) []enums.OrderStatus {
	next := transitions[status]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}
