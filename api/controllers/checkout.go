package controllers

import (
	"net/http"

	"github.com/campusmerch/checkout-backend/api/responses"
	"github.com/campusmerch/checkout-backend/api/validators"
	checkoutsvc "github.com/campusmerch/checkout-backend/internal/checkout"
	pkgerrors "github.com/campusmerch/checkout-backend/pkg/errors"
	"github.com/campusmerch/checkout-backend/pkg/logger"
)

// Checkout converts the caller's cart into a pending order. The body is optional.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.Input
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Location", "/api/v1/orders/"+order.ID.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
