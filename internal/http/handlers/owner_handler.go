// README: Owner handlers for registration, the sales report and the chair list.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"isuride/internal/http/middleware"
	"isuride/internal/modules/owner"
	"isuride/internal/modules/session"
	"isuride/internal/types"
)

type OwnerService interface {
	Register(ctx context.Context, name string) (*owner.Owner, error)
	Sales(ctx context.Context, ownerID types.ID, rng owner.SalesRange) (*owner.Sales, error)
	Chairs(ctx context.Context, ownerID types.ID) ([]owner.ChairSummary, error)
	ChairDetail(ctx context.Context, ownerID, chairID types.ID) (*owner.ChairSummary, error)
}

type OwnerHandler struct {
	owners OwnerService
}

func NewOwnerHandler(owners OwnerService) *OwnerHandler {
	return &OwnerHandler{owners: owners}
}

func (h *OwnerHandler) Register(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.owners.Register(c.Request.Context(), req.Name)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	setSession(c, session.RoleOwner, o.AccessToken)
	writeJSON(c, http.StatusCreated, gin.H{
		"id":                   o.ID,
		"chair_register_token": o.ChairRegisterToken,
		"access_token":         o.AccessToken,
	})
}

type chairSalesResp struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Sales int      `json:"sales"`
}

type modelSalesResp struct {
	Model string `json:"model"`
	Sales int    `json:"sales"`
}

func (h *OwnerHandler) Sales(c *gin.Context) {
	var rng owner.SalesRange
	for _, p := range []struct {
		name string
		set  func(int64)
	}{
		{name: "since", set: func(v int64) { rng.Since = fromMillis(v) }},
		{name: "until", set: func(v int64) { rng.Until = fromMillis(v) }},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid "+p.name)
			return
		}
		p.set(v)
	}

	s, err := h.owners.Sales(c.Request.Context(), middleware.CallerID(c), rng)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	chairs := make([]chairSalesResp, 0, len(s.Chairs))
	for _, cs := range s.Chairs {
		chairs = append(chairs, chairSalesResp{ID: cs.ID, Name: cs.Name, Sales: cs.Sales})
	}
	models := make([]modelSalesResp, 0, len(s.Models))
	for _, ms := range s.Models {
		models = append(models, modelSalesResp{Model: ms.Model, Sales: ms.Sales})
	}
	writeJSON(c, http.StatusOK, gin.H{"total_sales": s.Total, "chairs": chairs, "models": models})
}

type ownerChairResp struct {
	ID                     types.ID `json:"id"`
	Name                   string   `json:"name"`
	Model                  string   `json:"model"`
	Active                 bool     `json:"active"`
	RegisteredAt           int64    `json:"registered_at"`
	TotalDistance          int      `json:"total_distance"`
	TotalDistanceUpdatedAt *int64   `json:"total_distance_updated_at,omitempty"`
}

func toOwnerChairResp(cs owner.ChairSummary) ownerChairResp {
	out := ownerChairResp{
		ID:            cs.ID,
		Name:          cs.Name,
		Model:         cs.Model,
		Active:        cs.Active,
		RegisteredAt:  millis(cs.RegisteredAt),
		TotalDistance: cs.TotalDistance,
	}
	if cs.DistanceUpdatedAt != nil {
		ms := millis(*cs.DistanceUpdatedAt)
		out.TotalDistanceUpdatedAt = &ms
	}
	return out
}

func (h *OwnerHandler) Chairs(c *gin.Context) {
	chairs, err := h.owners.Chairs(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]ownerChairResp, 0, len(chairs))
	for _, cs := range chairs {
		out = append(out, toOwnerChairResp(cs))
	}
	writeJSON(c, http.StatusOK, gin.H{"chairs": out})
}

func (h *OwnerHandler) ChairDetail(c *gin.Context) {
	id, ok := pathID(c, "chair_id")
	if !ok {
		return
	}
	cs, err := h.owners.ChairDetail(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOwnerChairResp(*cs))
}
