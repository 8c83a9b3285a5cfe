package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is the single mutable cart owned by a user. It is cleared, never deleted,
// when checked out.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_user"`
	PromoCode *string    `gorm:"column:promo_code"`
	Lines     []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartLine is one purchasable unit in a cart with the price captured when added.
type CartLine struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID            uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_lines_cart_unit"`
	PurchasableUnitID uuid.UUID       `gorm:"column:purchasable_unit_id;type:uuid;not null;uniqueIndex:ux_cart_lines_cart_unit"`
	Quantity          int             `gorm:"column:quantity;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *CartLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
