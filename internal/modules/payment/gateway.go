// README: Payment gateway client; charges with retry and replays history to detect a charge that succeeded despite an error.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"isuride/internal/config"
	"isuride/internal/observability"
	"isuride/internal/types"
)

var ErrUpstream = errors.New("payment gateway error")

// ChargeRequest describes one settlement. History returns the ids of the
// user's settled rides in creation order, including this one.
type ChargeRequest struct {
	Token          string
	Amount         int
	IdempotencyKey types.ID
	History        func(ctx context.Context) ([]types.ID, error)
}

type Gateway struct {
	endpoint   *Endpoint
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

func NewGateway(endpoint *Endpoint, cfg config.PaymentConfig, log *zap.Logger) *Gateway {
	return &Gateway{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        log,
	}
}

type postPaymentRequest struct {
	Amount int `json:"amount"`
}

type paymentRecord struct {
	Amount int    `json:"amount"`
	Status string `json:"status"`
}

// Charge posts the payment and retries on failure. After a failed POST the
// gateway is asked for its payment list: when it already holds one payment per
// settled ride the charge went through and no retry is made.
func (g *Gateway) Charge(ctx context.Context, req ChargeRequest) error {
	body, err := json.Marshal(postPaymentRequest{Amount: req.Amount})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		lastErr = g.attempt(ctx, req, body)
		if lastErr == nil {
			observability.Payments.WithLabelValues("success").Inc()
			return nil
		}
		g.log.Warn("payment attempt failed",
			zap.String("idempotency_key", string(req.IdempotencyKey)),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	observability.Payments.WithLabelValues("failure").Inc()
	return fmt.Errorf("charge after %d attempts: %w", g.maxRetries+1, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, req ChargeRequest, body []byte) error {
	base := g.endpoint.URL()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/payments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	httpReq.Header.Set("Idempotency-Key", string(req.IdempotencyKey))

	res, err := g.client.Do(httpReq)
	if err == nil {
		res.Body.Close()
		if res.StatusCode == http.StatusNoContent || res.StatusCode == http.StatusOK {
			return nil
		}
		err = fmt.Errorf("%w: POST /payments returned %d", ErrUpstream, res.StatusCode)
	}

	replayed, rerr := g.alreadyCharged(ctx, base, req)
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	if replayed {
		g.log.Info("payment confirmed by replay", zap.String("idempotency_key", string(req.IdempotencyKey)))
		observability.Payments.WithLabelValues("replayed").Inc()
		return nil
	}
	return err
}

func (g *Gateway) alreadyCharged(ctx context.Context, base string, req ChargeRequest) (bool, error) {
	if req.History == nil {
		return false, nil
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/payments", nil)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)

	res, err := g.client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: GET /payments returned %d", ErrUpstream, res.StatusCode)
	}

	var payments []paymentRecord
	if err := json.NewDecoder(res.Body).Decode(&payments); err != nil {
		return false, fmt.Errorf("decode payments: %w", err)
	}
	rides, err := req.History(ctx)
	if err != nil {
		return false, fmt.Errorf("load ride history: %w", err)
	}
	return len(payments) == len(rides), nil
}
