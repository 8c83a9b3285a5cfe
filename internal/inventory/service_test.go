package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/campusmerch/checkout-backend/pkg/db"
	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.InventoryRecord{}, &models.OutboxEvent{}))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(dbpkg.FromGorm(conn), NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), logger.Nop()), logger.Nop())
	require.NoError(t, err)
	return svc
}

func seed(t *testing.T, conn *gorm.DB, stock, reserved int) uuid.UUID {
	t.Helper()
	unitID := uuid.New()
	require.NoError(t, conn.Create(&models.InventoryRecord{PurchasableUnitID: unitID, Stock: stock, Reserved: reserved}).Error)
	return unitID
}

func TestDecrementReducesStock(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 5, 1)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Decrement(context.Background(), tx, unitID, 3)
	})
	require.NoError(t, err)

	view, err := svc.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Stock)
	assert.Equal(t, 1, view.Reserved)
	assert.Equal(t, 1, view.Available)
}

func TestDecrementHonorsReserved(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 3, 2)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Decrement(context.Background(), tx, unitID, 2)
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, details["requested"])
	assert.Equal(t, 1, details["available"])

	view, err := svc.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Stock)
}

func TestDecrementMissingRecord(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	err := svc.Decrement(context.Background(), conn, uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 5, 0)

	for _, qty := range []int{0, -2} {
		err := svc.Decrement(context.Background(), conn, unitID, qty)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "qty %d got %v", qty, err)
	}
}

func TestDecrementLastUnitOnlyOnce(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 1, 0)

	first := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Decrement(context.Background(), tx, unitID, 1)
	})
	second := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Decrement(context.Background(), tx, unitID, 1)
	})
	require.NoError(t, first)
	assert.True(t, pkgerrors.Is(second, pkgerrors.CodeInsufficientStock))

	view, err := svc.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Stock)
}

func TestSetStockCreatesAndAudits(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := uuid.New()
	actor := outbox.ActorRef{UserID: uuid.New(), Role: enums.RoleAdmin}

	view, err := svc.SetStock(context.Background(), actor, unitID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, view.Available)

	view, err = svc.SetStock(context.Background(), actor, unitID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, view.Stock)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("aggregate_id = ?", unitID).Find(&events).Error)
	assert.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, enums.EventStockAdjusted, event.EventType)
	}
}

func TestRestockReturnsUnits(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 1, 1)
	missing := uuid.New()
	orderID := uuid.New()
	actor := outbox.ActorRef{Role: enums.RoleSystem}

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Restock(context.Background(), tx, actor, orderID, unitID, 2); err != nil {
			return err
		}
		return svc.Restock(context.Background(), tx, actor, orderID, missing, 4)
	})
	require.NoError(t, err)

	view, err := svc.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Stock)
	assert.Equal(t, 2, view.Available)

	view, err = svc.Get(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Stock)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventStockAdjusted).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	err = svc.Restock(context.Background(), conn, actor, orderID, unitID, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSetStockRejectsBelowReserved(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	unitID := seed(t, conn, 5, 3)

	_, err := svc.SetStock(context.Background(), outbox.ActorRef{UserID: uuid.New()}, unitID, 2)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.SetStock(context.Background(), outbox.ActorRef{UserID: uuid.New()}, unitID, -1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	view, err := svc.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Stock)
}

func TestGetMissingRecord(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	conn := newTestDB(t)
	_, err := NewService(nil, NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), nil), nil)
	assert.Error(t, err)
	_, err = NewService(dbpkg.FromGorm(conn), nil, outbox.NewService(outbox.NewRepository(conn), nil), nil)
	assert.Error(t, err)
	_, err = NewService(dbpkg.FromGorm(conn), NewRepository(conn), nil, nil)
	assert.Error(t, err)
}
