// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haulr/internal/http/handlers"
	"haulr/internal/http/middleware"
	"haulr/internal/infra"
	"haulr/internal/metrics"
)

type RouterDeps struct {
	Deliveries    handlers.DeliveryService
	Matching      handlers.MatchingService
	Drivers       handlers.DriverService
	Notifications handlers.Inbox // optional
	Verifier      infra.TokenVerifier
	Log           *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api", middleware.Auth(d.Verifier))
	admin := middleware.RequireRole(middleware.RoleAdmin)

	deliveryHandler := handlers.NewDeliveryHandler(d.Deliveries)
	api.POST("/deliveries", deliveryHandler.Create)
	api.GET("/deliveries/:id", deliveryHandler.Get)
	api.GET("/deliveries/:id/events", deliveryHandler.History)
	api.POST("/deliveries/:id/accept", deliveryHandler.Accept)
	api.POST("/deliveries/:id/transitions", deliveryHandler.Transition)
	api.POST("/deliveries/:id/auto-assign", admin, deliveryHandler.AutoAssign)

	matchingHandler := handlers.NewMatchingHandler(d.Matching)
	api.POST("/matching/rank", matchingHandler.Rank)
	api.GET("/deliveries/:id/offers", admin, matchingHandler.Offers)

	driverHandler := handlers.NewDriverHandler(d.Drivers)
	drivers := api.Group("/drivers/me", middleware.RequireRole(middleware.RoleDriver))
	drivers.GET("", driverHandler.Me)
	drivers.PUT("/location", driverHandler.UpdateLocation)
	drivers.PUT("/availability", driverHandler.SetAvailability)

	if d.Notifications != nil {
		notificationHandler := handlers.NewNotificationHandler(d.Notifications)
		api.GET("/notifications", notificationHandler.ListUnread)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
	}

	return r
}
