package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/pagination"
)

func TestHistoryCursorRoundTrip(t *testing.T) {
	loc := time.FixedZone("PHT", 8*60*60)
	order := models.Order{ID: uuid.New(), CreatedAt: time.Date(2026, 3, 1, 17, 30, 0, 123456789, loc)}

	value, err := cursorAfter(order).Encode()
	require.NoError(t, err)

	got, err := ParseHistoryCursor(value)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.OrderID)
	assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}

func TestParseHistoryCursorRejectsForeignTokens(t *testing.T) {
	blank, err := ParseHistoryCursor("")
	require.NoError(t, err)
	assert.Nil(t, blank)

	foreign, err := pagination.EncodeToken("promotions", HistoryCursor{CreatedAt: time.Now(), OrderID: uuid.New()})
	require.NoError(t, err)
	_, err = ParseHistoryCursor(foreign)
	assert.Error(t, err)

	empty, err := pagination.EncodeToken(historyCursorKind, map[string]any{})
	require.NoError(t, err)
	_, err = ParseHistoryCursor(empty)
	assert.Error(t, err)
}
