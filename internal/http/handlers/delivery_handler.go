// README: Delivery handlers for request/get/accept/transition/auto-assign.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"haulr/internal/http/middleware"
	"haulr/internal/modules/delivery"
	"haulr/internal/modules/driver"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/pricing"
	"haulr/internal/types"
)

// DeliveryService is the lifecycle surface the handlers drive.
type DeliveryService interface {
	RequestDelivery(ctx context.Context, cmd delivery.RequestCommand) (*delivery.Delivery, []matching.DriverScore, error)
	AcceptDelivery(ctx context.Context, cmd delivery.AcceptCommand) (*delivery.Delivery, error)
	TransitionDelivery(ctx context.Context, cmd delivery.TransitionCommand) (*delivery.Delivery, error)
	AutoAssign(ctx context.Context, id types.ID) (*delivery.Delivery, *matching.DriverScore, error)
	Get(ctx context.Context, id types.ID) (*delivery.Delivery, error)
	History(ctx context.Context, id types.ID) ([]delivery.Event, error)
}

type DeliveryHandler struct {
	deliveries DeliveryService
}

func NewDeliveryHandler(svc DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: svc}
}

type placeReq struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// place rejects a missing coordinate instead of reading it as (0,0).
func (p placeReq) place(field string) (delivery.Place, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return delivery.Place{}, &matching.ValidationError{Field: field + ".coordinate", Reason: "is required"}
	}
	return delivery.Place{
		Address:    p.Address,
		Coordinate: types.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude},
	}, nil
}

type createDeliveryReq struct {
	Pickup                placeReq               `json:"pickup"`
	Dropoff               placeReq               `json:"dropoff"`
	ItemDescription       string                 `json:"item_description"`
	ItemSize              pricing.ItemSize       `json:"item_size"`
	ItemWeight            delivery.ItemWeight    `json:"item_weight"`
	MaterialType          driver.MaterialType    `json:"material_type"`
	WeightKg              float64                `json:"weight_kg"`
	Urgency               matching.Urgency       `json:"urgency"`
	PaymentMethod         delivery.PaymentMethod `json:"payment_method"`
	FeeCents              *int64                 `json:"fee_cents"`
	MaxDistanceKm         *float64               `json:"max_distance_km"`
	MinRating             *float64               `json:"min_rating"`
	PreferredVehicleTypes []driver.VehicleType   `json:"preferred_vehicle_types"`
}

type createDeliveryResp struct {
	Delivery *delivery.Delivery     `json:"delivery"`
	Offered  []matching.DriverScore `json:"offered"`
}

// Create places a delivery for the calling customer.
func (h *DeliveryHandler) Create(c *gin.Context) {
	if middleware.CallerRole(c) == middleware.RoleDriver {
		writeError(c, http.StatusForbidden, "forbidden", "drivers cannot request deliveries")
		return
	}
	var req createDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	pickup, err := req.Pickup.place("pickup")
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	dropoff, err := req.Dropoff.place("dropoff")
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	cmd := delivery.RequestCommand{
		CustomerID:            types.ID(middleware.CallerUID(c)),
		Pickup:                pickup,
		Dropoff:               dropoff,
		ItemDescription:       req.ItemDescription,
		ItemSize:              req.ItemSize,
		ItemWeight:            req.ItemWeight,
		MaterialType:          req.MaterialType,
		WeightKg:              req.WeightKg,
		Urgency:               req.Urgency,
		PaymentMethod:         req.PaymentMethod,
		MaxDistanceKm:         req.MaxDistanceKm,
		MinRating:             req.MinRating,
		PreferredVehicleTypes: req.PreferredVehicleTypes,
	}
	if req.FeeCents != nil {
		fee := types.FromCents(*req.FeeCents)
		cmd.Fee = &fee
	}
	d, offered, err := h.deliveries.RequestDelivery(c.Request.Context(), cmd)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	if offered == nil {
		offered = []matching.DriverScore{}
	}
	writeJSON(c, http.StatusCreated, createDeliveryResp{Delivery: d, Offered: offered})
}

func (h *DeliveryHandler) Get(c *gin.Context) {
	d, ok := h.load(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DeliveryHandler) History(c *gin.Context) {
	d, ok := h.load(c)
	if !ok {
		return
	}
	events, err := h.deliveries.History(c.Request.Context(), d.ID)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

// load fetches the path delivery and checks the caller may see it.
func (h *DeliveryHandler) load(c *gin.Context) (*delivery.Delivery, bool) {
	d, err := h.deliveries.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDeliveryError(c, err)
		return nil, false
	}
	uid := types.ID(middleware.CallerUID(c))
	switch {
	case middleware.CallerRole(c) == middleware.RoleAdmin:
	case d.CustomerID == uid:
	case d.DriverID != nil && *d.DriverID == uid:
	default:
		writeError(c, http.StatusForbidden, "forbidden", "not a party to this delivery")
		return nil, false
	}
	return d, true
}

// Accept claims a pending delivery for the calling driver. First accept wins.
func (h *DeliveryHandler) Accept(c *gin.Context) {
	if middleware.CallerRole(c) != middleware.RoleDriver {
		writeError(c, http.StatusForbidden, "forbidden", "only drivers can accept deliveries")
		return
	}
	d, err := h.deliveries.AcceptDelivery(c.Request.Context(), delivery.AcceptCommand{
		DeliveryID: types.ID(c.Param("id")),
		DriverID:   types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type transitionReq struct {
	Action delivery.Action `json:"action" binding:"required"`
	Rating *int            `json:"rating"`
	Reason string          `json:"reason"`
}

func (h *DeliveryHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if _, ok := req.Action.Target(); !ok {
		writeError(c, http.StatusBadRequest, "bad_request", "unknown action")
		return
	}
	d, err := h.deliveries.TransitionDelivery(c.Request.Context(), delivery.TransitionCommand{
		DeliveryID: types.ID(c.Param("id")),
		Action:     req.Action,
		ActorType:  actorType(c),
		ActorID:    types.ID(middleware.CallerUID(c)),
		Rating:     req.Rating,
		Reason:     req.Reason,
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// AutoAssign hands a pending delivery to the single best driver.
func (h *DeliveryHandler) AutoAssign(c *gin.Context) {
	d, best, err := h.deliveries.AutoAssign(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	if best == nil {
		writeJSON(c, http.StatusOK, gin.H{"delivery": d, "assigned": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"delivery": d, "assigned": true, "match": best})
}
