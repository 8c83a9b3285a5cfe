package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/enums"
)

// Order is created once at checkout. Only the status and lifecycle timestamps
// change afterwards.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderRef      string            `gorm:"column:order_ref;not null;uniqueIndex:ux_orders_order_ref" json:"order_ref"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'PENDING_PAYMENT'" json:"status"`
	Subtotal      decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	DiscountTotal decimal.Decimal   `gorm:"column:discount_total;type:numeric(12,2);not null" json:"discount_total"`
	Total         decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	PromoCode     *string           `gorm:"column:promo_code" json:"promo_code,omitempty"`
	Notes         *string           `gorm:"column:notes" json:"notes,omitempty"`
	PaidAt        *time.Time        `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ClaimedAt     *time.Time        `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	CancelledAt   *time.Time        `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	Lines         []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`
	Payment       *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLine is the frozen snapshot of a cart line taken at checkout.
type OrderLine struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	PurchasableUnitID  uuid.UUID       `gorm:"column:purchasable_unit_id;type:uuid;not null" json:"purchasable_unit_id"`
	Position           int             `gorm:"column:position;not null" json:"position"`
	ProductName        string          `gorm:"column:product_name;not null" json:"product_name"`
	VariantDescription string          `gorm:"column:variant_description;not null" json:"variant_description"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Quantity           int             `gorm:"column:quantity;not null" json:"quantity"`
	LineTotal          decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null" json:"line_total"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Payment is the single cashier payment record attached to an order.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order" json:"order_id"`
	Method      enums.PaymentMethod `gorm:"column:method;not null;default:'CASHIER'" json:"method"`
	Status      enums.PaymentStatus `gorm:"column:status;not null;default:'NONE'" json:"status"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	ReferenceNo *string             `gorm:"column:reference_no" json:"reference_no,omitempty"`
	ProofRef    *string             `gorm:"column:proof_ref" json:"proof_ref,omitempty"`
	SubmittedAt *time.Time          `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	VerifiedBy  *uuid.UUID          `gorm:"column:verified_by;type:uuid" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time          `gorm:"column:verified_at" json:"verified_at,omitempty"`
	ReviewNote  *string             `gorm:"column:review_note" json:"review_note,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// OrderCounter holds the last issued order sequence number for a calendar year.
type OrderCounter struct {
	Year      int       `gorm:"column:year;primaryKey;autoIncrement:false"`
	Seq       int64     `gorm:"column:seq;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
