package orders

import "github.com/campusmerch/checkout-backend/pkg/enums"

// SubmitPaymentInput carries the shopper's proof of a cashier payment.
type SubmitPaymentInput struct {
	ReferenceNo *string `json:"reference_no,omitempty" validate:"omitempty,max=64"`
	ProofRef    *string `json:"proof_ref,omitempty" validate:"omitempty,max=512"`
}

// VerifyPaymentInput is an administrator's decision on a submitted payment.
type VerifyPaymentInput struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type SetStatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}
