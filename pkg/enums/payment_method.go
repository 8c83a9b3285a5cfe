package enums

// PaymentMethod describes how a buyer settles an order.
type PaymentMethod string

// PaymentMethodCashier is manual verification against a physical receipt; it is
// the only supported method.
const PaymentMethodCashier PaymentMethod = "CASHIER"

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return p == PaymentMethodCashier
}
