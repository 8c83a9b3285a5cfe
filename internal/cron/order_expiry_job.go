package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
)

const defaultExpiryBatch = 100

type pendingOrderReader interface {
	ListPendingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// OrderExpiryJobParams configure the unpaid order sweep.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderReader
	Expirer   orderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob builds the job that cancels orders left in
// PENDING_PAYMENT for longer than TTL.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("order ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		expirer: params.Expirer,
		ttl:     params.TTL,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	orders  pendingOrderReader
	expirer orderExpirer
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	orders, err := j.orders.ListPendingPaymentBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var (
		errs    error
		expired int
		skipped int
	)
	for _, order := range orders {
		if _, err := j.expirer.ExpireUnpaid(ctx, order.ID); err != nil {
			// the shopper submitted a payment after the query ran
			if pkgerrors.Is(err, pkgerrors.CodeInvalidStatus) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.OrderRef, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(orders),
		"expired": expired,
		"skipped": skipped,
	})
	j.logg.Info(logCtx, "cron.orders_expired")
	return errs
}
