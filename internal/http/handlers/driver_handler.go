// README: Driver self-service handlers (position, availability).
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"haulr/internal/http/middleware"
	"haulr/internal/modules/driver"
	"haulr/internal/types"
)

type DriverService interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	UpdateLocation(ctx context.Context, cmd driver.UpdateLocationCommand) error
	SetAvailability(ctx context.Context, cmd driver.SetAvailabilityCommand) (*driver.Driver, error)
}

type DriverHandler struct {
	drivers DriverService
}

func NewDriverHandler(svc DriverService) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

type driverResp struct {
	ID                  types.ID              `json:"id"`
	Name                string                `json:"name"`
	Rating              float64               `json:"rating"`
	VehicleType         driver.VehicleType    `json:"vehicle_type"`
	Status              driver.Status         `json:"status"`
	CurrentJobs         int                   `json:"current_jobs"`
	CompletedDeliveries int                   `json:"completed_deliveries"`
	Location            *types.Coordinate     `json:"location,omitempty"`
	LastDeliveryAt      *time.Time            `json:"last_delivery_at,omitempty"`
	Specializations     []driver.MaterialType `json:"specializations"`
}

func toDriverResp(d *driver.Driver) driverResp {
	return driverResp{
		ID:                  d.ID,
		Name:                d.Name,
		Rating:              d.Rating,
		VehicleType:         d.VehicleType,
		Status:              d.Status,
		CurrentJobs:         d.CurrentJobs,
		CompletedDeliveries: d.CompletedDeliveries,
		Location:            d.Location,
		LastDeliveryAt:      d.LastDeliveryAt,
		Specializations:     d.Specializations,
	}
}

func (h *DriverHandler) Me(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResp(d))
}

type updateLocationReq struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "latitude and longitude are required")
		return
	}
	err := h.drivers.UpdateLocation(c.Request.Context(), driver.UpdateLocationCommand{
		DriverID: types.ID(middleware.CallerUID(c)),
		Position: types.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type availabilityReq struct {
	Status driver.Status `json:"status" binding:"required"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "status is required")
		return
	}
	d, err := h.drivers.SetAvailability(c.Request.Context(), driver.SetAvailabilityCommand{
		DriverID: types.ID(middleware.CallerUID(c)),
		Status:   req.Status,
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResp(d))
}
