// README: HTTP router registration; role groups share the session middleware.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"isuride/internal/http/handlers"
	"isuride/internal/http/middleware"
	"isuride/internal/modules/session"
)

type RouterDeps struct {
	Sessions middleware.SessionResolver
	Users    handlers.UserService
	Owners   handlers.OwnerService
	Chairs   handlers.ChairService
	Rides    handlers.RideService
	Statuses handlers.StatusRequester
	Nearby   handlers.NearbyFinder
	Dispatch handlers.Dispatcher
	Location handlers.LocationRecorder
	Payment  handlers.PaymentEndpoint
	Flushers []handlers.Flusher
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	initH := handlers.NewInitializeHandler(deps.Payment, deps.Flushers...)
	r.POST("/api/initialize", initH.Initialize)

	app := handlers.NewAppHandler(deps.Users, deps.Rides, deps.Nearby)
	r.POST("/api/app/users", app.Register)
	appAuth := r.Group("/api/app", middleware.Auth(deps.Sessions, session.RoleUser))
	appAuth.POST("/payment-methods", app.RegisterPaymentMethod)
	appAuth.GET("/rides", app.ListRides)
	appAuth.POST("/rides", app.CreateRide)
	appAuth.POST("/rides/estimated-fare", app.EstimateFare)
	appAuth.GET("/rides/:ride_id", app.GetRide)
	appAuth.POST("/rides/:ride_id/evaluation", app.Evaluate)
	appAuth.POST("/rides/:ride_id/cancel", app.Cancel)
	appAuth.GET("/notification", app.Notification)
	appAuth.GET("/nearby-chairs", app.NearbyChairs)

	own := handlers.NewOwnerHandler(deps.Owners)
	r.POST("/api/owner/owners", own.Register)
	ownAuth := r.Group("/api/owner", middleware.Auth(deps.Sessions, session.RoleOwner))
	ownAuth.GET("/sales", own.Sales)
	ownAuth.GET("/chairs", own.Chairs)
	ownAuth.GET("/chairs/:chair_id", own.ChairDetail)

	ch := handlers.NewChairHandler(deps.Chairs, deps.Dispatch, deps.Location, deps.Statuses)
	r.POST("/api/chair/chairs", ch.Register)
	chAuth := r.Group("/api/chair", middleware.Auth(deps.Sessions, session.RoleChair))
	chAuth.POST("/activity", ch.Activity)
	chAuth.POST("/coordinate", ch.Coordinate)
	chAuth.GET("/notification", ch.Notification)
	chAuth.GET("/rides/:ride_id", ch.GetRide)
	chAuth.POST("/rides/:ride_id/status", ch.UpdateStatus)

	return r
}
