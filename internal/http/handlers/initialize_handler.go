// README: Initialize handler; points settlement at a payment gateway and drops derived caches.
package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

type PaymentEndpoint interface {
	Set(url string)
}

// Flusher drops a cache derived from the database.
type Flusher interface {
	Flush(ctx context.Context) error
}

type InitializeHandler struct {
	endpoint PaymentEndpoint
	caches   []Flusher
}

func NewInitializeHandler(endpoint PaymentEndpoint, caches ...Flusher) *InitializeHandler {
	return &InitializeHandler{endpoint: endpoint, caches: caches}
}

func (h *InitializeHandler) Initialize(c *gin.Context) {
	var req struct {
		PaymentServer string `json:"payment_server"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := url.Parse(req.PaymentServer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		writeError(c, http.StatusBadRequest, "payment_server must be an absolute url")
		return
	}
	for _, f := range h.caches {
		if err := f.Flush(c.Request.Context()); err != nil {
			writeDomainError(c, err)
			return
		}
	}
	h.endpoint.Set(req.PaymentServer)
	writeJSON(c, http.StatusOK, gin.H{"language": "go"})
}
