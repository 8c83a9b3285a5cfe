package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// View is the cart as shown to the shopper, priced with the captured unit
// prices and a non-binding discount preview.
type View struct {
	CartID    *uuid.UUID      `json:"cart_id,omitempty"`
	PromoCode *string         `json:"promo_code,omitempty"`
	Lines     []LineView      `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

type LineView struct {
	PurchasableUnitID  uuid.UUID       `json:"purchasable_unit_id"`
	ProductName        string          `json:"product_name"`
	VariantDescription string          `json:"variant_description"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

// AddItemInput adds quantity units of a purchasable unit to the cart.
type AddItemInput struct {
	PurchasableUnitID uuid.UUID `json:"purchasable_unit_id" validate:"required"`
	Quantity          int       `json:"quantity" validate:"required,min=1,max=99"`
}

// ApplyPromoInput sets the cart's promo code after strict validation.
type ApplyPromoInput struct {
	Code string `json:"code" validate:"required,max=64"`
}
