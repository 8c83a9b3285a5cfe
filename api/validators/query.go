package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/pagination"
)

const maxCursorLen = 512

// ParsePage reads ?limit= and ?cursor= for list endpoints. The cursor is left
// opaque; the service that issued it decodes it.
func ParsePage(r *http.Request) (pagination.Params, error) {
	q := r.URL.Query()
	params := pagination.Params{Limit: pagination.DefaultLimit}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "limit must be numeric").
				WithDetails(map[string]any{"field": "limit"})
		}
		if limit < 1 || limit > pagination.MaxLimit {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": pagination.MaxLimit})
		}
		params.Limit = limit
	}

	params.Cursor = strings.TrimSpace(q.Get("cursor"))
	if len(params.Cursor) > maxCursorLen {
		return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "cursor too long").
			WithDetails(map[string]any{"field": "cursor"})
	}
	return params, nil
}
