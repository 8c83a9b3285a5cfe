package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
)

// Repository defines the persistence surface for carts and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
	FindLine(ctx context.Context, cartID, unitID uuid.UUID) (*models.CartLine, error)
	SaveLine(ctx context.Context, line *models.CartLine) error
	DeleteLine(ctx context.Context, cartID, unitID uuid.UUID) (int64, error)
	DeleteLines(ctx context.Context, cartID uuid.UUID) error
	SetPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByUser returns nil, nil when the user has no cart yet.
func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(r.db.WithContext(ctx), userID)
}

// FindByUserForUpdate locks the cart row so a second checkout of the same
// cart waits and then sees the lines the first one cleared.
func (r *repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *repository) findByUser(q *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := q.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// ListLines returns the lines in the order they were added.
func (r *repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) FindLine(ctx context.Context, cartID, unitID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND purchasable_unit_id = ?", cartID, unitID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) SaveLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *repository) DeleteLine(ctx context.Context, cartID, unitID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND purchasable_unit_id = ?", cartID, unitID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteLines(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error
}

func (r *repository) SetPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("promo_code", code).Error
}
