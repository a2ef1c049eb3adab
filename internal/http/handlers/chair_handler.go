// README: Chair handlers for registration, activity, location pings, polling and status requests.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"isuride/internal/http/middleware"
	"isuride/internal/modules/chair"
	"isuride/internal/modules/dispatch"
	"isuride/internal/modules/location"
	"isuride/internal/modules/ride"
	"isuride/internal/modules/session"
	"isuride/internal/types"
)

type ChairService interface {
	Register(ctx context.Context, cmd chair.RegisterCommand) (*chair.Chair, error)
	SetActivity(ctx context.Context, chairID types.ID, active bool) error
}

type Dispatcher interface {
	Poll(ctx context.Context, chairID types.ID) (*dispatch.Assignment, error)
	RideForChair(ctx context.Context, chairID, rideID types.ID) (*dispatch.Assignment, error)
}

type LocationRecorder interface {
	Record(ctx context.Context, cmd location.RecordCommand) (*location.Ping, error)
}

type StatusRequester interface {
	DriverTransition(ctx context.Context, cmd ride.TransitionCommand) error
}

type ChairHandler struct {
	chairs   ChairService
	dispatch Dispatcher
	location LocationRecorder
	rides    StatusRequester
}

func NewChairHandler(chairs ChairService, d Dispatcher, loc LocationRecorder, rides StatusRequester) *ChairHandler {
	return &ChairHandler{chairs: chairs, dispatch: d, location: loc, rides: rides}
}

func (h *ChairHandler) Register(c *gin.Context) {
	var req struct {
		Name          string `json:"name"`
		Model         string `json:"model"`
		RegisterToken string `json:"chair_register_token"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.chairs.Register(c.Request.Context(), chair.RegisterCommand{
		Name:          req.Name,
		Model:         req.Model,
		RegisterToken: req.RegisterToken,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	setSession(c, session.RoleChair, ch.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{"id": ch.ID, "owner_id": ch.OwnerID, "access_token": ch.AccessToken})
}

func (h *ChairHandler) Activity(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(c, http.StatusBadRequest, "is_active is required")
		return
	}
	if err := h.chairs.SetActivity(c.Request.Context(), middleware.CallerID(c), *req.IsActive); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChairHandler) Coordinate(c *gin.Context) {
	var req struct {
		Latitude  *int `json:"latitude"`
		Longitude *int `json:"longitude"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	p, err := h.location.Record(c.Request.Context(), location.RecordCommand{
		ChairID:    middleware.CallerID(c),
		Coordinate: types.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"recorded_at": millis(p.CreatedAt)})
}

type simpleUserResp struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

type chairRideResp struct {
	RideID      types.ID         `json:"ride_id"`
	User        simpleUserResp   `json:"user"`
	Pickup      types.Coordinate `json:"pickup_coordinate"`
	Destination types.Coordinate `json:"destination_coordinate"`
	Status      ride.Status      `json:"status"`
}

func toChairRideResp(a *dispatch.Assignment) chairRideResp {
	return chairRideResp{
		RideID:      a.Ride.ID,
		User:        simpleUserResp{ID: a.Passenger.ID, Name: a.Passenger.Name},
		Pickup:      a.Ride.Pickup,
		Destination: a.Ride.Destination,
		Status:      a.Status,
	}
}

// Notification is the chair's poll: its current ride, or a newly claimed one.
func (h *ChairHandler) Notification(c *gin.Context) {
	a, err := h.dispatch.Poll(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if a == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, toChairRideResp(a))
}

func (h *ChairHandler) GetRide(c *gin.Context) {
	id, ok := pathID(c, "ride_id")
	if !ok {
		return
	}
	a, err := h.dispatch.RideForChair(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toChairRideResp(a))
}

func (h *ChairHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "ride_id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}
	err := h.rides.DriverTransition(c.Request.Context(), ride.TransitionCommand{
		ChairID: middleware.CallerID(c),
		RideID:  id,
		Status:  req.Status,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
