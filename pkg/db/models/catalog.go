package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog entry owned by the admin console; read-only here.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	BasePrice decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PurchasableUnit is a sellable variant and size combination of a product.
type PurchasableUnit struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	Product       *Product         `gorm:"foreignKey:ProductID"`
	VariantName   string           `gorm:"column:variant_name;not null"`
	Size          string           `gorm:"column:size;not null"`
	PriceOverride *decimal.Decimal `gorm:"column:price_override;type:numeric(12,2)"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	Inventory     *InventoryRecord `gorm:"foreignKey:PurchasableUnitID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *PurchasableUnit) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// InventoryRecord tracks stock and reserved counts for one purchasable unit.
type InventoryRecord struct {
	PurchasableUnitID uuid.UUID `gorm:"column:purchasable_unit_id;type:uuid;primaryKey"`
	Stock             int       `gorm:"column:stock;not null;default:0"`
	Reserved          int       `gorm:"column:reserved;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the quantity that can still be sold.
func (r InventoryRecord) Available() int {
	return r.Stock - r.Reserved
}
