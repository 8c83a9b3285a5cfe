package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/outbox"
	"github.com/campusmerch/checkout-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the inventory ledger.
type Service interface {
	// Decrement removes quantity units from stock inside the caller's transaction.
	Decrement(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, quantity int) error
	// Restock returns units of a cancelled order inside the caller's transaction.
	Restock(ctx context.Context, tx *gorm.DB, actor outbox.ActorRef, orderID, unitID uuid.UUID, quantity int) error
	Get(ctx context.Context, unitID uuid.UUID) (*StockView, error)
	SetStock(ctx context.Context, actor outbox.ActorRef, unitID uuid.UUID, stock int) (*StockView, error)
}

// StockView is the read model returned to callers.
type StockView struct {
	PurchasableUnitID uuid.UUID `json:"purchasable_unit_id"`
	Stock             int       `json:"stock"`
	Reserved          int       `json:"reserved"`
	Available         int       `json:"available"`
}

func viewOf(record *models.InventoryRecord) *StockView {
	return &StockView{
		PurchasableUnitID: record.PurchasableUnitID,
		Stock:             record.Stock,
		Reserved:          record.Reserved,
		Available:         record.Available(),
	}
}

type service struct {
	tx     txRunner
	repo   Repository
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewService builds the inventory ledger.
func NewService(tx txRunner, repo Repository, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{tx: tx, repo: repo, outbox: emitter, logg: logg}, nil
}

func (s *service) Decrement(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"purchasable_unit_id": unitID.String(), "quantity": quantity})
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.DecrementIfAvailable(ctx, unitID, quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "decrement stock")
	}
	if ok {
		return nil
	}

	record, err := repo.FindByUnitID(ctx, unitID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "load inventory record")
	}
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
			WithDetails(map[string]any{"purchasable_unit_id": unitID.String()})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"purchasable_unit_id": unitID.String(),
			"requested":           quantity,
			"available":           record.Available(),
		})
}

func (s *service) Restock(ctx context.Context, tx *gorm.DB, actor outbox.ActorRef, orderID, unitID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"purchasable_unit_id": unitID.String(), "quantity": quantity})
	}
	repo := s.repo.WithTx(tx)

	record, err := repo.FindByUnitIDForUpdate(ctx, unitID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "load inventory record")
	}
	if record == nil {
		record = &models.InventoryRecord{PurchasableUnitID: unitID, Stock: quantity}
		if err := repo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "create inventory record")
		}
	} else {
		if err := repo.Increment(ctx, unitID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "increment stock")
		}
		record.Stock += quantity
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateInventory,
		AggregateID:   unitID,
		Actor:         &actor,
		Data: payloads.StockAdjustedEvent{
			PurchasableUnitID: unitID,
			PreviousStock:     record.Stock - quantity,
			Stock:             record.Stock,
			Reserved:          record.Reserved,
			Reason:            payloads.StockReasonOrderCancelled,
			OrderID:           &orderID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "emit stock adjusted event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, unitID uuid.UUID) (*StockView, error) {
	record, err := s.repo.FindByUnitID(ctx, unitID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInventory, err, "load inventory record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	return viewOf(record), nil
}

// SetStock overwrites the stock count of a unit, creating the record when the
// unit has none yet. Stock may not drop below the reserved count.
func (s *service) SetStock(ctx context.Context, actor outbox.ActorRef, unitID uuid.UUID, stock int) (*StockView, error) {
	if unitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable unit id required")
	}
	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}

	var result *models.InventoryRecord
	previous := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByUnitIDForUpdate(ctx, unitID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "load inventory record")
		}
		if record == nil {
			record = &models.InventoryRecord{PurchasableUnitID: unitID}
		}
		if stock < record.Reserved {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be below reserved").
				WithDetails(map[string]any{"stock": stock, "reserved": record.Reserved})
		}
		previous = record.Stock
		record.Stock = stock
		if err := repo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "save inventory record")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   unitID,
			Actor:         &actor,
			Data: payloads.StockAdjustedEvent{
				PurchasableUnitID: unitID,
				PreviousStock:     previous,
				Stock:             record.Stock,
				Reserved:          record.Reserved,
				Reason:            payloads.StockReasonManual,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInventory, err, "emit stock adjusted event")
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"purchasable_unit_id": unitID.String(),
		"previous_stock":      previous,
		"stock":               stock,
		"actor_id":            actor.UserID.String(),
	})
	s.logg.Info(logCtx, "inventory stock set")
	return viewOf(result), nil
}
