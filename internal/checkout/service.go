package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/internal/cart"
	"github.com/campusmerch/checkout-backend/internal/catalog"
	"github.com/campusmerch/checkout-backend/internal/orderref"
	"github.com/campusmerch/checkout-backend/internal/orders"
	"github.com/campusmerch/checkout-backend/internal/promotions"
	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/metrics"
	"github.com/campusmerch/checkout-backend/pkg/outbox"
	"github.com/campusmerch/checkout-backend/pkg/outbox/payloads"
)

const (
	DefaultNotesMaxLen = 500
	outcomeSuccess     = "success"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, quantity int) error
}

// Service converts a shopper's cart into an order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error)
}

// Input carries the optional data supplied at checkout.
type Input struct {
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	PromoCode *string `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

// Params groups the collaborators of the checkout service.
type Params struct {
	Tx          txRunner
	Carts       cart.Repository
	Orders      orders.Repository
	Catalog     catalog.Snapshot
	Promotions  promotions.Evaluator
	Refs        orderref.Generator
	Inventory   stockLedger
	Outbox      outbox.Emitter
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	NotesMaxLen int
}

type service struct {
	tx          txRunner
	carts       cart.Repository
	orders      orders.Repository
	catalog     catalog.Snapshot
	promotions  promotions.Evaluator
	refs        orderref.Generator
	inventory   stockLedger
	outbox      outbox.Emitter
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	notesMaxLen int
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(p Params) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog snapshot required")
	}
	if p.Promotions == nil {
		return nil, fmt.Errorf("promotion evaluator required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Refs == nil {
		p.Refs = orderref.NewGenerator()
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.NotesMaxLen <= 0 {
		p.NotesMaxLen = DefaultNotesMaxLen
	}
	return &service{
		tx:          p.Tx,
		carts:       p.Carts,
		orders:      p.Orders,
		catalog:     p.Catalog,
		promotions:  p.Promotions,
		refs:        p.Refs,
		inventory:   p.Inventory,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
		logg:        p.Logger,
		notesMaxLen: p.NotesMaxLen,
		now:         time.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	started := time.Now()
	order, err := s.checkout(ctx, userID, input)
	s.record(ctx, userID, order, err, time.Since(started))
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) checkout(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	notes := s.normalizeNotes(input.Notes)
	now := s.now().UTC()

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		snapshot := s.catalog.WithTx(tx)

		record, err := cartRepo.FindByUserForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load cart")
		}
		if record == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		lines, err := cartRepo.ListLines(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load cart lines")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no lines")
		}

		orderLines := make([]models.OrderLine, 0, len(lines))
		subtotal := decimal.Zero
		for i, line := range lines {
			unit, err := snapshot.FindUnit(ctx, line.PurchasableUnitID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load purchasable unit")
			}
			if unit == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchasable unit not found").
					WithDetails(map[string]any{"purchasable_unit_id": line.PurchasableUnitID.String()})
			}
			if !unit.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "purchasable unit is no longer available").
					WithDetails(map[string]any{"purchasable_unit_id": line.PurchasableUnitID.String()})
			}
			lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			orderLines = append(orderLines, models.OrderLine{
				PurchasableUnitID:  line.PurchasableUnitID,
				Position:           i + 1,
				ProductName:        unit.ProductName,
				VariantDescription: unit.VariantDescription(),
				UnitPrice:          line.UnitPrice,
				Quantity:           line.Quantity,
				LineTotal:          lineTotal,
			})
		}

		code := effectivePromoCode(input.PromoCode, record.PromoCode)
		promo, err := s.promotions.Evaluate(ctx, tx, code, subtotal, now, promotions.ModeLenient)
		if err != nil {
			return err
		}
		total := subtotal.Sub(promo.Discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		ref, err := s.refs.Issue(ctx, tx, now)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if err := s.inventory.Decrement(ctx, tx, line.PurchasableUnitID, line.Quantity); err != nil {
				return err
			}
		}

		order := &models.Order{
			OrderRef:      ref,
			UserID:        userID,
			Status:        enums.OrderStatusPendingPayment,
			Subtotal:      subtotal,
			DiscountTotal: promo.Discount,
			Total:         total,
			Notes:         notes,
			Lines:         orderLines,
			Payment: &models.Payment{
				Method: enums.PaymentMethodCashier,
				Status: enums.PaymentStatusNone,
				Amount: total,
			},
		}
		if promo.Applied {
			applied := promo.Code
			order.PromoCode = &applied
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "insert order")
		}

		if err := cartRepo.DeleteLines(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "clear cart lines")
		}
		if err := cartRepo.SetPromoCode(ctx, record.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "clear cart promo")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderRef:      order.OrderRef,
				UserID:        userID,
				Subtotal:      order.Subtotal,
				DiscountTotal: order.DiscountTotal,
				Total:         order.Total,
				PromoCode:     order.PromoCode,
				LineCount:     len(orderLines),
			},
			OccurredAt: now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "emit order created event")
		}

		loaded, err := ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "reload order")
		}
		if loaded == nil {
			return pkgerrors.New(pkgerrors.CodeOrder, "order missing after insert")
		}
		result = loaded
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeOrder, "checkout failed")
	}
	return result, nil
}

func (s *service) record(ctx context.Context, userID uuid.UUID, order *models.Order, err error, elapsed time.Duration) {
	ctx = s.logg.WithUserID(ctx, userID.String())
	if err == nil {
		s.metrics.ObserveCheckout(outcomeSuccess, elapsed)
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		ctx = s.logg.WithFields(ctx, map[string]any{
			"order_ref": order.OrderRef,
			"total":     order.Total.StringFixed(2),
			"lines":     len(order.Lines),
		})
		s.logg.Info(ctx, "checkout.completed")
		return
	}

	code := pkgerrors.CodeOf(err)
	s.metrics.ObserveCheckout(string(code), elapsed)
	ctx = s.logg.WithField(ctx, "error_code", string(code))
	if pkgerrors.IsClientError(code) {
		s.logg.Warn(ctx, "checkout.rejected")
		return
	}
	s.logg.Error(ctx, "checkout.failed", err)
}

// normalizeNotes trims the notes and truncates them to the configured number
// of characters. Blank notes become nil.
func (s *service) normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) > s.notesMaxLen {
		trimmed = strings.TrimSpace(string([]rune(trimmed)[:s.notesMaxLen]))
	}
	return &trimmed
}

func effectivePromoCode(explicit, stored *string) string {
	if explicit != nil {
		if code := promotions.Normalize(*explicit); code != "" {
			return code
		}
	}
	if stored != nil {
		return promotions.Normalize(*stored)
	}
	return ""
}
