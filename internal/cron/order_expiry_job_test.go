package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
)

type fakePendingOrders struct {
	orders     []models.Order
	lastCutoff time.Time
	lastLimit  int
}

func (f *fakePendingOrders) ListPendingPaymentBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	f.lastCutoff = cutoff
	f.lastLimit = limit
	return f.orders, nil
}

type fakeExpirer struct {
	results map[uuid.UUID]error
	calls   []uuid.UUID
}

func (f *fakeExpirer) ExpireUnpaid(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.calls = append(f.calls, orderID)
	if err := f.results[orderID]; err != nil {
		return nil, err
	}
	return &models.Order{ID: orderID}, nil
}

func TestOrderExpiryJobExpiresEveryOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := models.Order{ID: uuid.New(), OrderRef: "CMERCH-2026-000001"}
	b := models.Order{ID: uuid.New(), OrderRef: "CMERCH-2026-000002"}
	c := models.Order{ID: uuid.New(), OrderRef: "CMERCH-2026-000003"}
	reader := &fakePendingOrders{orders: []models.Order{a, b, c}}
	expirer := &fakeExpirer{results: map[uuid.UUID]error{
		b.ID: pkgerrors.New(pkgerrors.CodeInvalidStatus, "order status does not allow this action"),
	}}

	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:  logger.Nop(),
		Orders:  reader,
		Expirer: expirer,
		TTL:     72 * time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*orderExpiryJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, reader.lastCutoff.Equal(now.Add(-72*time.Hour)))
	assert.Equal(t, defaultExpiryBatch, reader.lastLimit)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, expirer.calls)
}

func TestOrderExpiryJobCollectsFailures(t *testing.T) {
	a := models.Order{ID: uuid.New(), OrderRef: "CMERCH-2026-000001"}
	b := models.Order{ID: uuid.New(), OrderRef: "CMERCH-2026-000002"}
	expirer := &fakeExpirer{results: map[uuid.UUID]error{
		a.ID: errors.New("db down"),
		b.ID: errors.New("db down"),
	}}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:  logger.Nop(),
		Orders:  &fakePendingOrders{orders: []models.Order{a, b}},
		Expirer: expirer,
		TTL:     time.Hour,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CMERCH-2026-000001")
	assert.Contains(t, err.Error(), "CMERCH-2026-000002")
	assert.Len(t, expirer.calls, 2)
}

func TestNewOrderExpiryJobRequiresTTL(t *testing.T) {
	_, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:  logger.Nop(),
		Orders:  &fakePendingOrders{},
		Expirer: &fakeExpirer{},
	})
	assert.Error(t, err)
}
