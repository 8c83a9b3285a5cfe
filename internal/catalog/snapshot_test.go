package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.PurchasableUnit{}, &models.InventoryRecord{}))
	return conn
}

func TestFindUnitUsesOverridePrice(t *testing.T) {
	conn := newTestDB(t)
	product := models.Product{Name: "Org Hoodie", BasePrice: decimal.RequireFromString("850.00"), IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	override := decimal.RequireFromString("900.00")
	withOverride := models.PurchasableUnit{ProductID: product.ID, VariantName: "Maroon", Size: "XL", PriceOverride: &override, IsActive: true}
	plain := models.PurchasableUnit{ProductID: product.ID, VariantName: "Maroon", Size: "M", IsActive: true}
	require.NoError(t, conn.Create(&withOverride).Error)
	require.NoError(t, conn.Create(&plain).Error)

	snap := NewSnapshot(conn)

	unit, err := snap.FindUnit(context.Background(), withOverride.ID)
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "Org Hoodie", unit.ProductName)
	assert.Equal(t, "Maroon / XL", unit.VariantDescription())
	assert.Equal(t, "900.00", unit.Price.StringFixed(2))
	assert.True(t, unit.IsActive)

	unit, err = snap.FindUnit(context.Background(), plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "850.00", unit.Price.StringFixed(2))
}

func TestFindUnitInactiveProduct(t *testing.T) {
	conn := newTestDB(t)
	product := models.Product{Name: "Lanyard", BasePrice: decimal.RequireFromString("120"), IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	require.NoError(t, conn.Model(&product).Update("is_active", false).Error)
	unit := models.PurchasableUnit{ProductID: product.ID, VariantName: "Blue", IsActive: true}
	require.NoError(t, conn.Create(&unit).Error)

	got, err := NewSnapshot(conn).FindUnit(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "Blue", got.VariantDescription())
}

func TestFindUnitMissing(t *testing.T) {
	conn := newTestDB(t)
	got, err := NewSnapshot(conn).FindUnit(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}
