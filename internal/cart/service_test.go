package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/internal/catalog"
	"github.com/campusmerch/checkout-backend/internal/promotions"
	dbpkg "github.com/campusmerch/checkout-backend/pkg/db"
	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/enums"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
)

type fixture struct {
	db      *gorm.DB
	svc     Service
	hoodie  models.PurchasableUnit
	lanyard models.PurchasableUnit
	retired models.PurchasableUnit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	f := &fixture{db: conn}
	hoodie := models.Product{Name: "Org Hoodie", BasePrice: decimal.RequireFromString("500.00"), IsActive: true}
	lanyard := models.Product{Name: "Lanyard", BasePrice: decimal.RequireFromString("75.50"), IsActive: true}
	require.NoError(t, conn.Create(&hoodie).Error)
	require.NoError(t, conn.Create(&lanyard).Error)
	f.hoodie = models.PurchasableUnit{ProductID: hoodie.ID, VariantName: "Maroon", Size: "L", IsActive: true}
	f.lanyard = models.PurchasableUnit{ProductID: lanyard.ID, VariantName: "Blue", IsActive: true}
	f.retired = models.PurchasableUnit{ProductID: hoodie.ID, VariantName: "Gray", Size: "S", IsActive: true}
	for _, unit := range []*models.PurchasableUnit{&f.hoodie, &f.lanyard, &f.retired} {
		require.NoError(t, conn.Create(unit).Error)
	}
	require.NoError(t, conn.Model(&f.retired).Update("is_active", false).Error)

	require.NoError(t, conn.Create(&models.Promotion{
		Code:        "WELCOME10",
		Type:        enums.PromotionTypePercent,
		Value:       decimal.NewFromInt(10),
		StartsAt:    time.Now().Add(-24 * time.Hour),
		EndsAt:      time.Now().Add(24 * time.Hour),
		MinSubtotal: ptrDecimal("100"),
		IsActive:    true,
	}).Error)

	evaluator, err := promotions.NewEvaluator(promotions.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(dbpkg.FromGorm(conn), NewRepository(conn), catalog.NewSnapshot(conn), evaluator, nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func ptrDecimal(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestGetWithoutCartReturnsEmptyView(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, view.CartID)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestAddItemCreatesCartAndMergesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.lanyard.ID, Quantity: 2})
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 1})
	require.NoError(t, err)

	require.NotNil(t, view.CartID)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, f.hoodie.ID, view.Lines[0].PurchasableUnitID)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "Org Hoodie", view.Lines[0].ProductName)
	assert.Equal(t, "Maroon / L", view.Lines[0].VariantDescription)
	assert.Equal(t, "1000.00", view.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "1151.00", view.Subtotal.StringFixed(2))

	var carts int64
	require.NoError(t, f.db.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)
}

func TestAddItemKeepsCapturedPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.lanyard.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", f.lanyard.ProductID).Update("base_price", decimal.RequireFromString("99.00")).Error)

	view, err := f.svc.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "75.50", view.Lines[0].UnitPrice.StringFixed(2))
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.retired.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 90})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 10})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItem(ctx, uuid.Nil, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.RemoveItem(ctx, userID, f.hoodie.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 1})
	require.NoError(t, err)
	view, err := f.svc.RemoveItem(ctx, userID, f.hoodie.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	_, err = f.svc.RemoveItem(ctx, userID, f.hoodie.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestApplyPromoIsStrict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.lanyard.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ApplyPromo(ctx, userID, ApplyPromoInput{Code: "welcome10"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidPromo), "got %v", err)
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, promotions.ReasonBelowMinimum, details["reason"])

	_, err = f.svc.ApplyPromo(ctx, userID, ApplyPromoInput{Code: "BOGUS"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidPromo))

	view, err := f.svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, view.PromoCode)
}

func TestApplyAndRemovePromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.AddItem(ctx, userID, AddItemInput{PurchasableUnitID: f.hoodie.ID, Quantity: 2})
	require.NoError(t, err)

	view, err := f.svc.ApplyPromo(ctx, userID, ApplyPromoInput{Code: " welcome10 "})
	require.NoError(t, err)
	require.NotNil(t, view.PromoCode)
	assert.Equal(t, "WELCOME10", *view.PromoCode)
	assert.Equal(t, "100.00", view.Discount.StringFixed(2))
	assert.Equal(t, "900.00", view.Total.StringFixed(2))

	view, err = f.svc.RemovePromo(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, view.PromoCode)
	assert.Equal(t, "1000.00", view.Total.StringFixed(2))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}
