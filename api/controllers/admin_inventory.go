package controllers

import (
	"net/http"

	"github.com/campusmerch/checkout-backend/api/middleware"
	"github.com/campusmerch/checkout-backend/api/responses"
	"github.com/campusmerch/checkout-backend/api/validators"
	"github.com/campusmerch/checkout-backend/internal/inventory"
	"github.com/campusmerch/checkout-backend/pkg/logger"
	"github.com/campusmerch/checkout-backend/pkg/outbox"
)

type setStockRequest struct {
	Stock *int `json:"stock" validate:"required,min=0"`
}

func AdminInventoryGet(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := validators.ParseUUIDParam(r, "unitId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), unitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminInventorySet overwrites the stock count of a purchasable unit.
func AdminInventorySet(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unitID, err := validators.ParseUUIDParam(r, "unitId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := outbox.ActorRef{UserID: adminID, Role: middleware.RoleFromContext(r.Context())}
		view, err := svc.SetStock(r.Context(), actor, unitID, *payload.Stock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
