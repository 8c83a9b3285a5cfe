package controllers

import (
	"time"

	"github.com/google/uuid"

	orderssvc "github.com/campusmerch/checkout-backend/internal/orders"
	"github.com/campusmerch/checkout-backend/pkg/db/models"
)

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderRef      string              `json:"order_ref"`
	Status        string              `json:"status"`
	Subtotal      string              `json:"subtotal"`
	DiscountTotal string              `json:"discount_total"`
	Total         string              `json:"total"`
	PromoCode     *string             `json:"promo_code,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
	Payment       *paymentResponse    `json:"payment,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	ClaimedAt     *time.Time          `json:"claimed_at,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type orderLineResponse struct {
	Position           int       `json:"position"`
	PurchasableUnitID  uuid.UUID `json:"purchasable_unit_id"`
	ProductName        string    `json:"product_name"`
	VariantDescription string    `json:"variant_description"`
	UnitPrice          string    `json:"unit_price"`
	Quantity           int       `json:"quantity"`
	LineTotal          string    `json:"line_total"`
}

type paymentResponse struct {
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	ReferenceNo *string    `json:"reference_no,omitempty"`
	ProofRef    *string    `json:"proof_ref,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	ReviewNote  *string    `json:"review_note,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		OrderRef:      order.OrderRef,
		Status:        string(order.Status),
		Subtotal:      order.Subtotal.StringFixed(2),
		DiscountTotal: order.DiscountTotal.StringFixed(2),
		Total:         order.Total.StringFixed(2),
		PromoCode:     order.PromoCode,
		Notes:         order.Notes,
		Lines:         make([]orderLineResponse, 0, len(order.Lines)),
		PaidAt:        order.PaidAt,
		ClaimedAt:     order.ClaimedAt,
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			Position:           line.Position,
			PurchasableUnitID:  line.PurchasableUnitID,
			ProductName:        line.ProductName,
			VariantDescription: line.VariantDescription,
			UnitPrice:          line.UnitPrice.StringFixed(2),
			Quantity:           line.Quantity,
			LineTotal:          line.LineTotal.StringFixed(2),
		})
	}
	if p := order.Payment; p != nil {
		resp.Payment = &paymentResponse{
			Method:      string(p.Method),
			Status:      string(p.Status),
			Amount:      p.Amount.StringFixed(2),
			ReferenceNo: p.ReferenceNo,
			ProofRef:    p.ProofRef,
			SubmittedAt: p.SubmittedAt,
			VerifiedAt:  p.VerifiedAt,
			ReviewNote:  p.ReviewNote,
		}
	}
	return resp
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newOrderListResponse(page *orderssvc.OrderPage) orderListResponse {
	out := orderListResponse{Orders: make([]orderResponse, 0)}
	if page == nil {
		return out
	}
	for i := range page.Orders {
		out.Orders = append(out.Orders, newOrderResponse(&page.Orders[i]))
	}
	out.NextCursor = page.NextCursor
	return out
}
