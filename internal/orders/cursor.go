package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusmerch/checkout-backend/pkg/db/models"
	"github.com/campusmerch/checkout-backend/pkg/pagination"
)

const historyCursorKind = "order_history"

// HistoryCursor is the keyset position in a user's order history, which is
// sorted by (created_at DESC, id DESC).
type HistoryCursor struct {
	CreatedAt time.Time `json:"created_at"`
	OrderID   uuid.UUID `json:"order_id"`
}

func cursorAfter(order models.Order) HistoryCursor {
	return HistoryCursor{CreatedAt: order.CreatedAt.UTC(), OrderID: order.ID}
}

// Encode renders the cursor as the opaque next_cursor value.
func (c HistoryCursor) Encode() (string, error) {
	return pagination.EncodeToken(historyCursorKind, c)
}

// ParseHistoryCursor returns nil, nil for a blank value.
func ParseHistoryCursor(value string) (*HistoryCursor, error) {
	var c HistoryCursor
	ok, err := pagination.DecodeToken(value, historyCursorKind, &c)
	if err != nil || !ok {
		return nil, err
	}
	if c.OrderID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("cursor is missing its position")
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
