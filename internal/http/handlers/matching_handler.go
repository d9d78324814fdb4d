// README: Matching handlers; ranks drivers for ad-hoc criteria and lists offers.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"haulr/internal/modules/matching"
	"haulr/internal/types"
)

type MatchingService interface {
	Rank(ctx context.Context, c matching.Criteria, limit int) ([]matching.DriverScore, error)
	OfferedDrivers(ctx context.Context, deliveryID types.ID) ([]types.ID, error)
	OfferedAt(ctx context.Context, deliveryID types.ID) (time.Time, bool, error)
}

type MatchingHandler struct {
	matching MatchingService
}

func NewMatchingHandler(svc MatchingService) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

// Rank scores available drivers for the posted criteria. ?limit= caps the result.
func (h *MatchingHandler) Rank(c *gin.Context) {
	var crit matching.Criteria
	if err := c.ShouldBindJSON(&crit); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	limit := matching.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = n
	}
	scores, err := h.matching.Rank(c.Request.Context(), crit, limit)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	if scores == nil {
		scores = []matching.DriverScore{}
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": scores})
}

// Offers lists the drivers a delivery was offered to and when it was first
// offered. offered_at is null until the first offer.
func (h *MatchingHandler) Offers(c *gin.Context) {
	ctx := c.Request.Context()
	id := types.ID(c.Param("id"))
	ids, err := h.matching.OfferedDrivers(ctx, id)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	at, ok, err := h.matching.OfferedAt(ctx, id)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	if ids == nil {
		ids = []types.ID{}
	}
	var offeredAt *time.Time
	if ok {
		offeredAt = &at
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_ids": ids, "offered_at": offeredAt})
}
