// README: Passenger (app) handlers for registration, rides, settlement and the nearby chair search.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"isuride/internal/http/middleware"
	"isuride/internal/modules/dispatch"
	"isuride/internal/modules/fare"
	"isuride/internal/modules/ride"
	"isuride/internal/modules/session"
	"isuride/internal/modules/stats"
	"isuride/internal/modules/user"
	"isuride/internal/types"
)

type UserService interface {
	Register(ctx context.Context, cmd user.RegisterCommand) (*user.User, error)
	RegisterPaymentToken(ctx context.Context, userID types.ID, token string) error
}

type RideService interface {
	Create(ctx context.Context, cmd ride.CreateCommand) (*ride.CreateResult, error)
	EstimateFare(ctx context.Context, userID types.ID, pickup, destination types.Coordinate) (fare.Quote, error)
	Get(ctx context.Context, userID, rideID types.ID) (*ride.View, error)
	Notification(ctx context.Context, userID types.ID) (*ride.View, error)
	History(ctx context.Context, userID types.ID) ([]ride.HistoryEntry, error)
	Evaluate(ctx context.Context, cmd ride.EvaluateCommand) (*ride.EvaluateResult, error)
	Cancel(ctx context.Context, cmd ride.CancelCommand) error
}

type NearbyFinder interface {
	NearbyChairs(ctx context.Context, q dispatch.NearbyQuery) (*dispatch.NearbyResult, error)
}

type AppHandler struct {
	users  UserService
	rides  RideService
	nearby NearbyFinder
}

func NewAppHandler(users UserService, rides RideService, nearby NearbyFinder) *AppHandler {
	return &AppHandler{users: users, rides: rides, nearby: nearby}
}

type registerUserReq struct {
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	DateOfBirth    string `json:"date_of_birth"`
	InvitationCode string `json:"invitation_code"`
}

func (h *AppHandler) Register(c *gin.Context) {
	var req registerUserReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterCommand{
		Username:       req.Username,
		Firstname:      req.Firstname,
		Lastname:       req.Lastname,
		DateOfBirth:    req.DateOfBirth,
		InvitationCode: req.InvitationCode,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	setSession(c, session.RoleUser, u.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{
		"id":              u.ID,
		"invitation_code": u.InvitationCode,
		"access_token":    u.AccessToken,
	})
}

func (h *AppHandler) RegisterPaymentMethod(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.RegisterPaymentToken(c.Request.Context(), middleware.CallerID(c), req.Token); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type rideRouteReq struct {
	Pickup      *types.Coordinate `json:"pickup_coordinate"`
	Destination *types.Coordinate `json:"destination_coordinate"`
}

func (h *AppHandler) bindRoute(c *gin.Context) (rideRouteReq, bool) {
	var req rideRouteReq
	if !bindJSON(c, &req) {
		return req, false
	}
	if req.Pickup == nil || req.Destination == nil {
		writeError(c, http.StatusBadRequest, "required fields(pickup_coordinate, destination_coordinate) are empty")
		return req, false
	}
	return req, true
}

func (h *AppHandler) CreateRide(c *gin.Context) {
	req, ok := h.bindRoute(c)
	if !ok {
		return
	}
	res, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		UserID:      middleware.CallerID(c),
		Pickup:      *req.Pickup,
		Destination: *req.Destination,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"ride_id": res.RideID, "fare": res.Fare})
}

func (h *AppHandler) EstimateFare(c *gin.Context) {
	req, ok := h.bindRoute(c)
	if !ok {
		return
	}
	q, err := h.rides.EstimateFare(c.Request.Context(), middleware.CallerID(c), *req.Pickup, *req.Destination)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"fare": q.Fare, "discount": q.Discount})
}

type rideResp struct {
	ID          types.ID         `json:"id"`
	Pickup      types.Coordinate `json:"pickup_coordinate"`
	Destination types.Coordinate `json:"destination_coordinate"`
	Status      ride.Status      `json:"status"`
	Fare        int              `json:"fare"`
	Evaluation  *int             `json:"evaluation,omitempty"`
	Chair       *stats.ChairView `json:"chair,omitempty"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
}

func toRideResp(v *ride.View) rideResp {
	return rideResp{
		ID:          v.Ride.ID,
		Pickup:      v.Ride.Pickup,
		Destination: v.Ride.Destination,
		Status:      v.Status,
		Fare:        v.Fare,
		Evaluation:  v.Ride.Evaluation,
		Chair:       v.Chair,
		CreatedAt:   millis(v.Ride.CreatedAt),
		UpdatedAt:   millis(v.Ride.UpdatedAt),
	}
}

func (h *AppHandler) GetRide(c *gin.Context) {
	id, ok := pathID(c, "ride_id")
	if !ok {
		return
	}
	v, err := h.rides.Get(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResp(v))
}

func (h *AppHandler) Notification(c *gin.Context) {
	v, err := h.rides.Notification(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if v == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, toRideResp(v))
}

type historyChairResp struct {
	ID    types.ID `json:"id"`
	Owner string   `json:"owner"`
	Name  string   `json:"name"`
	Model string   `json:"model"`
}

type historyResp struct {
	ID          types.ID         `json:"id"`
	Pickup      types.Coordinate `json:"pickup_coordinate"`
	Destination types.Coordinate `json:"destination_coordinate"`
	Chair       historyChairResp `json:"chair"`
	Fare        int              `json:"fare"`
	Evaluation  int              `json:"evaluation"`
	RequestedAt int64            `json:"requested_at"`
	CompletedAt int64            `json:"completed_at"`
}

func (h *AppHandler) ListRides(c *gin.Context) {
	entries, err := h.rides.History(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]historyResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResp{
			ID:          e.Ride.ID,
			Pickup:      e.Ride.Pickup,
			Destination: e.Ride.Destination,
			Chair:       historyChairResp{ID: e.Chair.ID, Owner: e.Chair.Owner, Name: e.Chair.Name, Model: e.Chair.Model},
			Fare:        e.Fare,
			Evaluation:  e.Evaluation,
			RequestedAt: millis(e.RequestedAt),
			CompletedAt: millis(e.CompletedAt),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

func (h *AppHandler) Evaluate(c *gin.Context) {
	id, ok := pathID(c, "ride_id")
	if !ok {
		return
	}
	var req struct {
		Evaluation int `json:"evaluation"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.rides.Evaluate(c.Request.Context(), ride.EvaluateCommand{
		UserID:     middleware.CallerID(c),
		RideID:     id,
		Evaluation: req.Evaluation,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"fare": res.Fare, "completed_at": millis(res.CompletedAt)})
}

func (h *AppHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "ride_id")
	if !ok {
		return
	}
	if err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{UserID: middleware.CallerID(c), RideID: id}); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type nearbyChairResp struct {
	ID         types.ID         `json:"id"`
	Name       string           `json:"name"`
	Model      string           `json:"model"`
	Stats      stats.ChairStats `json:"stats"`
	Coordinate types.Coordinate `json:"current_coordinate"`
}

func (h *AppHandler) NearbyChairs(c *gin.Context) {
	lat, err1 := strconv.Atoi(c.Query("latitude"))
	lon, err2 := strconv.Atoi(c.Query("longitude"))
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required integers")
		return
	}
	var radius *int
	if v, ok := c.GetQuery("distance"); ok && v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeError(c, http.StatusBadRequest, "invalid distance")
			return
		}
		radius = &d
	}

	res, err := h.nearby.NearbyChairs(c.Request.Context(), dispatch.NearbyQuery{
		Coordinate: types.Coordinate{Latitude: lat, Longitude: lon},
		Radius:     radius,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	chairs := make([]nearbyChairResp, 0, len(res.Chairs))
	for _, nc := range res.Chairs {
		chairs = append(chairs, nearbyChairResp{
			ID:         nc.Chair.ID,
			Name:       nc.Chair.Name,
			Model:      nc.Chair.Model,
			Stats:      nc.Chair.Stats,
			Coordinate: nc.Coordinate,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"chairs": chairs, "retrieved_at": millis(res.RetrievedAt)})
}
