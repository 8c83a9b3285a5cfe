package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
)

// Repository persists inventory records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUnitID(ctx context.Context, unitID uuid.UUID) (*models.InventoryRecord, error)
	FindByUnitIDForUpdate(ctx context.Context, unitID uuid.UUID) (*models.InventoryRecord, error)
	DecrementIfAvailable(ctx context.Context, unitID uuid.UUID, quantity int) (bool, error)
	Increment(ctx context.Context, unitID uuid.UUID, quantity int) error
	Save(ctx context.Context, record *models.InventoryRecord) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByUnitID returns nil, nil when the unit has no inventory record.
func (r *repository) FindByUnitID(ctx context.Context, unitID uuid.UUID) (*models.InventoryRecord, error) {
	return r.find(r.db.WithContext(ctx), unitID)
}

func (r *repository) FindByUnitIDForUpdate(ctx context.Context, unitID uuid.UUID) (*models.InventoryRecord, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), unitID)
}

func (r *repository) find(q *gorm.DB, unitID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := q.Where("purchasable_unit_id = ?", unitID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DecrementIfAvailable subtracts quantity from stock only when enough units are
// available. The check and the write are one statement, so two concurrent
// buyers of the last unit cannot both succeed.
func (r *repository) DecrementIfAvailable(ctx context.Context, unitID uuid.UUID, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("purchasable_unit_id = ? AND stock - reserved >= ?", unitID, quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, unitID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("purchasable_unit_id = ?", unitID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) Save(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
