package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/internal/catalog"
	"github.com/campusmerch/checkout-backend/internal/promotions"
	"github.com/campusmerch/checkout-backend/pkg/db/models"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
)

const maxLineQuantity = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the shopper's single mutable cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	RemoveItem(ctx context.Context, userID, unitID uuid.UUID) (*View, error)
	ApplyPromo(ctx context.Context, userID uuid.UUID, input ApplyPromoInput) (*View, error)
	RemovePromo(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	catalog   catalog.Snapshot
	evaluator promotions.Evaluator
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(tx txRunner, repo Repository, snapshot catalog.Snapshot, evaluator promotions.Evaluator, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if snapshot == nil {
		return nil, fmt.Errorf("catalog snapshot required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("promotion evaluator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        tx,
		repo:      repo,
		catalog:   snapshot,
		evaluator: evaluator,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.repo.WithTx(tx).FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		view, err = s.buildView(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if input.PurchasableUnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable unit id required")
	}
	if input.Quantity < 1 || input.Quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"quantity": input.Quantity, "max": maxLineQuantity})
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		unit, err := s.catalog.WithTx(tx).FindUnit(ctx, input.PurchasableUnitID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchasable unit")
		}
		if unit == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "purchasable unit not found")
		}
		if !unit.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "purchasable unit is not available").
				WithDetails(map[string]any{"purchasable_unit_id": unit.ID.String()})
		}

		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		line, err := repo.FindLine(ctx, cart.ID, unit.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line == nil {
			line = &models.CartLine{
				CartID:            cart.ID,
				PurchasableUnitID: unit.ID,
				UnitPrice:         unit.Price,
			}
		}
		line.Quantity += input.Quantity
		if line.Quantity > maxLineQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
				WithDetails(map[string]any{"quantity": line.Quantity, "max": maxLineQuantity})
		}
		if err := repo.SaveLine(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}

		view, err = s.buildView(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, unitID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		removed, err := repo.DeleteLine(ctx, cart.ID, unitID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		view, err = s.buildView(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyPromo validates the code strictly against the current subtotal before
// storing it on the cart.
func (s *service) ApplyPromo(ctx context.Context, userID uuid.UUID, input ApplyPromoInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	code := promotions.Normalize(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		lines, err := repo.ListLines(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
		}
		if _, err := s.evaluator.Evaluate(ctx, tx, code, subtotalOf(lines), s.now(), promotions.ModeStrict); err != nil {
			return err
		}
		if err := repo.SetPromoCode(ctx, cart.ID, &code); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store promo code")
		}
		cart.PromoCode = &code
		view, err = s.buildView(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "promo_code": code})
	s.logg.Info(logCtx, "promo code applied to cart")
	return view, nil
}

func (s *service) RemovePromo(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart != nil && cart.PromoCode != nil {
			if err := repo.SetPromoCode(ctx, cart.ID, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear promo code")
			}
			cart.PromoCode = nil
		}
		view, err = s.buildView(ctx, tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ensureCart(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{UserID: userID}
	if err := repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) buildView(ctx context.Context, tx *gorm.DB, cart *models.Cart) (*View, error) {
	view := &View{Lines: []LineView{}, Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	if cart == nil {
		return view, nil
	}
	view.CartID = &cart.ID
	view.PromoCode = cart.PromoCode

	lines, err := s.repo.WithTx(tx).ListLines(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	snapshot := s.catalog.WithTx(tx)
	for _, line := range lines {
		lineView := LineView{
			PurchasableUnitID: line.PurchasableUnitID,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			LineTotal:         line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
		unit, err := snapshot.FindUnit(ctx, line.PurchasableUnitID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchasable unit")
		}
		if unit != nil {
			lineView.ProductName = unit.ProductName
			lineView.VariantDescription = unit.VariantDescription()
		}
		view.Lines = append(view.Lines, lineView)
	}
	view.Subtotal = subtotalOf(lines)

	if cart.PromoCode != nil {
		res, err := s.evaluator.Evaluate(ctx, tx, *cart.PromoCode, view.Subtotal, s.now(), promotions.ModeLenient)
		if err != nil {
			return nil, err
		}
		view.Discount = res.Discount
	}
	view.Total = decimal.Max(decimal.Zero, view.Subtotal.Sub(view.Discount))
	return view, nil
}

func subtotalOf(lines []models.CartLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}
