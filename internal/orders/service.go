package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/metrics"
	"github.com/campusmerch/checkout-backend/pkg/outbox"
	"github.com/campusmerch/checkout-backend/pkg/outbox/payloads"
	"github.com/campusmerch/checkout-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockReturner gives a cancelled order's units back to the inventory ledger.
type stockReturner interface {
	Restock(ctx context.Context, tx *gorm.DB, actor outbox.ActorRef, orderID, unitID uuid.UUID, quantity int) error
}

// Service moves orders through their lifecycle and exposes order reads.
type Service interface {
	SubmitPayment(ctx context.Context, userID, orderID uuid.UUID, input SubmitPaymentInput) (*models.Order, error)
	VerifyPayment(ctx context.Context, orderID, adminID uuid.UUID, input VerifyPaymentInput) (*models.Order, error)
	MarkClaimed(ctx context.Context, orderID, adminID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	AdminSetStatus(ctx context.Context, orderID, adminID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	GetOrderByRef(ctx context.Context, ref string) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// OrderPage is one page of a user's order history.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

type service struct {
	tx      txRunner
	repo    Repository
	outbox  outbox.Emitter
	stock   stockReturner
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the order lifecycle service.
func NewService(tx txRunner, repo Repository, emitter outbox.Emitter, stock stockReturner, m *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:      tx,
		repo:    repo,
		outbox:  emitter,
		stock:   stock,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// transitionFunc mutates a locked order inside the transaction and returns
// the event describing the change.
type transitionFunc func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error)

func (s *service) transition(ctx context.Context, orderID uuid.UUID, owner *uuid.UUID, fn transitionFunc) (*models.Order, enums.OrderStatus, error) {
	if orderID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		result *models.Order
		from   enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load order")
		}
		if order == nil || (owner != nil && order.UserID != *owner) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		from = order.Status

		now := s.now().UTC()
		event, err := fn(ctx, tx, repo, order, now)
		if err != nil {
			return err
		}
		event.AggregateType = enums.AggregateOrder
		event.AggregateID = order.ID
		event.OccurredAt = now
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "emit order event")
		}

		loaded, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "reload order")
		}
		result = loaded
		return nil
	})
	if err != nil {
		return nil, from, pkgerrors.Ensure(err, pkgerrors.CodeOrder, "order transition failed")
	}
	s.metrics.IncTransition(string(result.Status))
	return result, from, nil
}

func requireStatus(order *models.Order, want, target enums.OrderStatus) error {
	if order.Status == want && CanTransition(want, target) {
		return nil
	}
	return invalidStatus(order, target)
}

func invalidStatus(order *models.Order, target enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidStatus, "order status does not allow this action").
		WithDetails(map[string]any{
			"order_id": order.ID.String(),
			"status":   order.Status,
			"target":   target,
		})
}

func (s *service) loadPayment(ctx context.Context, repo Repository, order *models.Order) (*models.Payment, error) {
	payment, err := repo.FindPaymentByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "order has no payment record").
			WithDetails(map[string]any{"order_id": order.ID.String()})
	}
	return payment, nil
}

func (s *service) SubmitPayment(ctx context.Context, userID, orderID uuid.UUID, input SubmitPaymentInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	referenceNo := trimmedOrNil(input.ReferenceNo)
	proofRef := trimmedOrNil(input.ProofRef)

	order, _, err := s.transition(ctx, orderID, &userID, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		target := enums.OrderStatusPaymentForVerification
		if err := requireStatus(order, enums.OrderStatusPendingPayment, target); err != nil {
			return outbox.DomainEvent{}, err
		}
		payment, err := s.loadPayment(ctx, repo, order)
		if err != nil {
			return outbox.DomainEvent{}, err
		}
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":       enums.PaymentStatusSubmitted,
			"reference_no": referenceNo,
			"proof_ref":    proofRef,
			"submitted_at": now,
			"verified_by":  nil,
			"verified_at":  nil,
			"review_note":  nil,
		}); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "update payment")
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "update order status")
		}
		return outbox.DomainEvent{
			EventType: enums.EventPaymentSubmitted,
			Actor:     &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer},
			Data: payloads.PaymentEvent{
				OrderID:       order.ID,
				OrderRef:      order.OrderRef,
				PaymentID:     payment.ID,
				PaymentStatus: enums.PaymentStatusSubmitted,
				OrderStatus:   target,
				ReferenceNo:   referenceNo,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, order, enums.OrderStatusPendingPayment, "order.payment_submitted")
	return order, nil
}

func (s *service) VerifyPayment(ctx context.Context, orderID, adminID uuid.UUID, input VerifyPaymentInput) (*models.Order, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id required")
	}
	note := trimmedOrNil(input.Note)

	order, from, err := s.transition(ctx, orderID, nil, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		target := enums.OrderStatusPendingPayment
		paymentStatus := enums.PaymentStatusRejected
		eventType := enums.EventPaymentRejected
		if input.Approve {
			target = enums.OrderStatusPaidForPickup
			paymentStatus = enums.PaymentStatusVerified
			eventType = enums.EventPaymentVerified
		}
		if err := requireStatus(order, enums.OrderStatusPaymentForVerification, target); err != nil {
			return outbox.DomainEvent{}, err
		}
		payment, err := s.loadPayment(ctx, repo, order)
		if err != nil {
			return outbox.DomainEvent{}, err
		}
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":      paymentStatus,
			"verified_by": adminID,
			"verified_at": now,
			"review_note": note,
		}); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodePayment, err, "update payment")
		}
		orderUpdates := map[string]any{"status": target}
		if input.Approve {
			orderUpdates["paid_at"] = now
		}
		if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "update order status")
		}
		return outbox.DomainEvent{
			EventType: eventType,
			Actor:     &outbox.ActorRef{UserID: adminID, Role: enums.RoleAdmin},
			Data: payloads.PaymentEvent{
				OrderID:       order.ID,
				OrderRef:      order.OrderRef,
				PaymentID:     payment.ID,
				PaymentStatus: paymentStatus,
				OrderStatus:   target,
				ReferenceNo:   payment.ReferenceNo,
				ReviewNote:    note,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	msg := "order.payment_rejected"
	if input.Approve {
		msg = "order.payment_verified"
	}
	s.logTransition(ctx, order, from, msg)
	return order, nil
}

func (s *service) MarkClaimed(ctx context.Context, orderID, adminID uuid.UUID) (*models.Order, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id required")
	}
	order, from, err := s.transition(ctx, orderID, nil, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		target := enums.OrderStatusClaimed
		if err := requireStatus(order, enums.OrderStatusPaidForPickup, target); err != nil {
			return outbox.DomainEvent{}, err
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": target, "claimed_at": now}); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "update order status")
		}
		return statusEvent(enums.EventOrderClaimed, &outbox.ActorRef{UserID: adminID, Role: enums.RoleAdmin}, order, target, now), nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, order, from, "order.claimed")
	return order, nil
}

// Cancel lets the owner abandon an order that has not been paid. Stock taken
// at checkout goes back to the ledger in the same transaction.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	order, from, err := s.transition(ctx, orderID, &userID, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		target := enums.OrderStatusCancelled
		if !CanTransition(order.Status, target) {
			return outbox.DomainEvent{}, invalidStatus(order, target)
		}
		actor := outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer}
		if err := s.cancelAndRestock(ctx, tx, repo, order, actor, now); err != nil {
			return outbox.DomainEvent{}, err
		}
		return statusEvent(enums.EventOrderCancelled, &actor, order, target, now), nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, order, from, "order.cancelled")
	return order, nil
}

// ExpireUnpaid cancels an order that is still waiting for its first payment
// submission. It is used by the maintenance worker and records a system actor.
func (s *service) ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, from, err := s.transition(ctx, orderID, nil, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		target := enums.OrderStatusCancelled
		if err := requireStatus(order, enums.OrderStatusPendingPayment, target); err != nil {
			return outbox.DomainEvent{}, err
		}
		actor := outbox.ActorRef{Role: enums.RoleSystem}
		if err := s.cancelAndRestock(ctx, tx, repo, order, actor, now); err != nil {
			return outbox.DomainEvent{}, err
		}
		return statusEvent(enums.EventOrderCancelled, &actor, order, target, now), nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, order, from, "order.expired")
	return order, nil
}

func (s *service) cancelAndRestock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, actor outbox.ActorRef, now time.Time) error {
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": enums.OrderStatusCancelled, "cancelled_at": now}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "update order status")
	}
	full, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load order lines")
	}
	if full == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	for _, line := range full.Lines {
		if err := s.stock.Restock(ctx, tx, actor, order.ID, line.PurchasableUnitID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// AdminSetStatus forces an order into any known status without consulting
// the lifecycle graph. Every call is audited through the outbox.
func (s *service) AdminSetStatus(ctx context.Context, orderID, adminID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": status, "allowed": enums.OrderStatuses()})
	}
	order, from, err := s.transition(ctx, orderID, nil, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (outbox.DomainEvent, error) {
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": status}); err != nil {
			return outbox.DomainEvent{}, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "override order status")
		}
		return statusEvent(enums.EventOrderStatusOverridden, &outbox.ActorRef{UserID: adminID, Role: enums.RoleAdmin}, order, status, now), nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_ref":       order.OrderRef,
		"admin_id":        adminID.String(),
		"previous_status": string(from),
		"new_status":      string(status),
	})
	s.logg.Warn(logCtx, "order.status_overridden")
	return order, nil
}

// GetOrder returns nil, nil when the order does not exist or belongs to someone else.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return nil, nil
	}
	return order, nil
}

func (s *service) GetOrderByRef(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}
	order, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	cursor, err := ParseHistoryCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit, fetch := params.Window()
	rows, err := s.repo.ListByUser(ctx, userID, cursor, fetch)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "list orders")
	}
	rows, last := pagination.Trim(rows, limit)
	page := &OrderPage{Orders: rows}
	if last != nil {
		next, err := cursorAfter(*last).Encode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOrder, err, "encode cursor")
		}
		page.NextCursor = next
	}
	return page, nil
}

func (s *service) logTransition(ctx context.Context, order *models.Order, from enums.OrderStatus, msg string) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_ref":   order.OrderRef,
		"from_status": string(from),
		"to_status":   string(order.Status),
	})
	s.logg.Info(ctx, msg)
}

func statusEvent(eventType enums.OutboxEventType, actor *outbox.ActorRef, order *models.Order, to enums.OrderStatus, now time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType: eventType,
		Actor:     actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			OrderRef:   order.OrderRef,
			FromStatus: order.Status,
			ToStatus:   to,
			ChangedAt:  now,
		},
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
