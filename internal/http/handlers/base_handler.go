// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"haulr/internal/http/middleware"
	"haulr/internal/modules/delivery"
	"haulr/internal/modules/driver"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/notification"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

func writeDeliveryError(c *gin.Context, err error) {
	var (
		verr    *matching.ValidationError
		illegal *delivery.IllegalTransitionError
		payout  *delivery.PayoutComputationError
	)
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, "invalid_criteria", err.Error())
	case errors.As(err, &illegal):
		writeError(c, http.StatusConflict, "illegal_transition", err.Error())
	case errors.As(err, &payout):
		writeError(c, http.StatusUnprocessableEntity, "payout_failed", err.Error())
	case errors.Is(err, delivery.ErrBadRequest),
		errors.Is(err, delivery.ErrInvalidRating),
		errors.Is(err, driver.ErrInvalidStatus),
		errors.Is(err, driver.ErrInvalidRating),
		errors.Is(err, driver.ErrInvalidPosition):
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, delivery.ErrDeliveryAlreadyAssigned):
		writeError(c, http.StatusConflict, "already_assigned", err.Error())
	case errors.Is(err, delivery.ErrDriverUnavailable):
		writeError(c, http.StatusConflict, "driver_unavailable", err.Error())
	case errors.Is(err, delivery.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, delivery.ErrActorNotPermitted):
		writeError(c, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

// actorType maps the caller's token role onto a lifecycle actor.
func actorType(c *gin.Context) delivery.ActorType {
	switch middleware.CallerRole(c) {
	case middleware.RoleDriver:
		return delivery.ActorDriver
	case middleware.RoleAdmin:
		return delivery.ActorSystem
	default:
		return delivery.ActorCustomer
	}
}
