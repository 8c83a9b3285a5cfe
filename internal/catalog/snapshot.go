package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
)

// Unit is the read-only view of a purchasable unit needed to price cart lines
// and to snapshot order lines.
type Unit struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	VariantName string
	Size        string
	Price       decimal.Decimal
	IsActive    bool
}

// VariantDescription renders "variant / size", dropping empty parts.
func (u Unit) VariantDescription() string {
	parts := make([]string, 0, 2)
	for _, part := range []string{u.VariantName, u.Size} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " / ")
}

// Snapshot reads catalog data owned by the admin console.
type Snapshot interface {
	WithTx(tx *gorm.DB) Snapshot
	// FindUnit returns nil, nil when the unit does not exist.
	FindUnit(ctx context.Context, unitID uuid.UUID) (*Unit, error)
}

type snapshot struct {
	db *gorm.DB
}

func NewSnapshot(db *gorm.DB) Snapshot {
	return &snapshot{db: db}
}

func (s *snapshot) WithTx(tx *gorm.DB) Snapshot {
	if tx == nil {
		return s
	}
	return &snapshot{db: tx}
}

func (s *snapshot) FindUnit(ctx context.Context, unitID uuid.UUID) (*Unit, error) {
	var row models.PurchasableUnit
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", unitID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Product == nil {
		return nil, fmt.Errorf("purchasable unit %s has no product", unitID)
	}
	return unitFromModel(row), nil
}

func unitFromModel(row models.PurchasableUnit) *Unit {
	price := row.Product.BasePrice
	if row.PriceOverride != nil {
		price = *row.PriceOverride
	}
	return &Unit{
		ID:          row.ID,
		ProductID:   row.ProductID,
		ProductName: row.Product.Name,
		VariantName: row.VariantName,
		Size:        row.Size,
		Price:       price,
		IsActive:    row.IsActive && row.Product.IsActive,
	}
}
