package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
)

// Mode selects how an unusable code is reported.
type Mode int

const (
	// ModeLenient yields a zero discount for any unusable code. Checkout uses it
	// when reusing a code stored on the cart.
	ModeLenient Mode = iota
	// ModeStrict rejects unusable codes with INVALID_PROMO. Used when a shopper
	// applies a code to the cart.
	ModeStrict
)

const (
	ReasonNotFound     = "not_found"
	ReasonInactive     = "inactive"
	ReasonNotStarted   = "not_started"
	ReasonExpired      = "expired"
	ReasonBelowMinimum = "below_minimum"
)

var hundred = decimal.NewFromInt(100)

// Result describes the outcome of evaluating a code against a subtotal.
type Result struct {
	Code     string
	Discount decimal.Decimal
	Applied  bool
	Reason   string
}

type Evaluator interface {
	Evaluate(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, now time.Time, mode Mode) (Result, error)
}

type evaluator struct {
	repo Repository
}

func NewEvaluator(repo Repository) (Evaluator, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotion repository required")
	}
	return &evaluator{repo: repo}, nil
}

// Normalize trims and upper-cases a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate resolves code against subtotal at time now. tx may be nil when the
// caller is not inside a transaction.
func (e *evaluator) Evaluate(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, now time.Time, mode Mode) (Result, error) {
	normalized := Normalize(code)
	result := Result{Code: normalized, Discount: decimal.Zero}
	if normalized == "" {
		return result, nil
	}

	promo, err := e.repo.WithTx(tx).FindByCode(ctx, normalized)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup promotion").
			WithDetails(map[string]any{"dependency": "promotions"})
	}

	reason := unusableReason(promo, subtotal, now)
	if reason != "" {
		result.Reason = reason
		if mode == ModeStrict {
			return result, pkgerrors.New(pkgerrors.CodeInvalidPromo, "promo code cannot be applied").
				WithDetails(map[string]any{"code": normalized, "reason": reason})
		}
		return result, nil
	}

	result.Discount = ComputeDiscount(*promo, subtotal)
	result.Applied = true
	return result, nil
}

func unusableReason(promo *models.Promotion, subtotal decimal.Decimal, now time.Time) string {
	switch {
	case promo == nil:
		return ReasonNotFound
	case !promo.IsActive:
		return ReasonInactive
	case now.Before(promo.StartsAt):
		return ReasonNotStarted
	case now.After(promo.EndsAt):
		return ReasonExpired
	case promo.MinSubtotal != nil && subtotal.LessThan(*promo.MinSubtotal):
		return ReasonBelowMinimum
	}
	return ""
}

// ComputeDiscount applies promo to subtotal, rounded half-up to cents. The
// result never exceeds the subtotal.
func ComputeDiscount(promo models.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch promo.Type {
	case enums.PromotionTypePercent:
		discount = subtotal.Mul(promo.Value).Div(hundred)
	case enums.PromotionTypeFixed:
		discount = decimal.Min(promo.Value, subtotal)
	default:
		return decimal.Zero
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, subtotal).Round(2)
}
