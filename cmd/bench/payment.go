// README: Fake payment gateway served by the bench; counts charges per payment token.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

type paymentRecord struct {
	Amount int    `json:"amount"`
	Status string `json:"status"`
}

type paymentGateway struct {
	mu       sync.Mutex
	payments map[string][]paymentRecord
	srv      *http.Server
}

func newPaymentGateway(addr string) *paymentGateway {
	g := &paymentGateway{payments: map[string][]paymentRecord{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/payments", g.handle)
	g.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return g
}

func (g *paymentGateway) Start() error {
	errCh := make(chan error, 1)
	go func() { errCh <- g.srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (g *paymentGateway) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = g.srv.Close()
	}
}

func (g *paymentGateway) handle(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Amount int `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.payments[token] = append(g.payments[token], paymentRecord{Amount: req.Amount, Status: "succeeded"})
		g.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		g.mu.Lock()
		out := append([]paymentRecord{}, g.payments[token]...)
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *paymentGateway) Charges(token string) []paymentRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]paymentRecord{}, g.payments[token]...)
}
