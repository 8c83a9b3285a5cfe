package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/enums"
)

// Promotion is a discount code. Codes are stored upper-cased.
type Promotion struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code        string              `gorm:"column:code;not null;uniqueIndex:ux_promotions_code"`
	Type        enums.PromotionType `gorm:"column:type;not null"`
	Value       decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	StartsAt    time.Time           `gorm:"column:starts_at;not null"`
	EndsAt      time.Time           `gorm:"column:ends_at;not null"`
	MinSubtotal *decimal.Decimal    `gorm:"column:min_subtotal;type:numeric(12,2)"`
	IsActive    bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
