package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"isuride/internal/config"
	"isuride/internal/types"
)

type fakeGateway struct {
	mu       sync.Mutex
	failures int
	// chargeOnFailure records the payment even when the POST answers with an error.
	chargeOnFailure bool
	payments        []int
	posts           int32
	auth            []string
	keys            []string
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	switch r.Method {
	case http.MethodPost:
		atomic.AddInt32(&f.posts, 1)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		var body postPaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.failures > 0 {
			f.failures--
			if f.chargeOnFailure {
				f.payments = append(f.payments, body.Amount)
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.payments = append(f.payments, body.Amount)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		out := make([]paymentRecord, 0, len(f.payments))
		for _, a := range f.payments {
			out = append(out, paymentRecord{Amount: a, Status: "succeeded"})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func newTestGateway(t *testing.T, h http.Handler, retries int) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.PaymentConfig{MaxRetries: retries, RetryDelay: time.Millisecond, Timeout: time.Second}
	return NewGateway(NewEndpoint(srv.URL), cfg, zap.NewNop())
}

func history(ids ...types.ID) func(context.Context) ([]types.ID, error) {
	return func(context.Context) ([]types.ID, error) { return ids, nil }
}

func TestCharge_Success(t *testing.T) {
	fg := &fakeGateway{}
	g := newTestGateway(t, fg, 5)

	err := g.Charge(context.Background(), ChargeRequest{Token: "tok", Amount: 1000, IdempotencyKey: "ride-1", History: history("ride-1")})
	require.NoError(t, err)

	assert.Equal(t, []int{1000}, fg.payments)
	assert.Equal(t, []string{"Bearer tok"}, fg.auth)
	assert.Equal(t, []string{"ride-1"}, fg.keys)
}

func TestCharge_RetriesUntilSuccess(t *testing.T) {
	fg := &fakeGateway{failures: 2}
	g := newTestGateway(t, fg, 5)

	err := g.Charge(context.Background(), ChargeRequest{Token: "tok", Amount: 700, IdempotencyKey: "ride-1", History: history("ride-1")})
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&fg.posts))
	assert.Equal(t, []int{700}, fg.payments)
}

func TestCharge_ReplayDetectsCompletedCharge(t *testing.T) {
	fg := &fakeGateway{failures: 1, chargeOnFailure: true}
	g := newTestGateway(t, fg, 5)

	err := g.Charge(context.Background(), ChargeRequest{Token: "tok", Amount: 700, IdempotencyKey: "ride-1", History: history("ride-1")})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fg.posts), "no second POST once the gateway lists the payment")
	assert.Equal(t, []int{700}, fg.payments)
}

func TestCharge_GivesUp(t *testing.T) {
	fg := &fakeGateway{failures: 100}
	g := newTestGateway(t, fg, 2)

	err := g.Charge(context.Background(), ChargeRequest{Token: "tok", Amount: 700, IdempotencyKey: "ride-1", History: history("ride-1")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fg.posts))
	assert.Empty(t, fg.payments)
}

func TestCharge_StopsOnCancel(t *testing.T) {
	fg := &fakeGateway{failures: 100}
	srv := httptest.NewServer(fg)
	defer srv.Close()
	g := NewGateway(NewEndpoint(srv.URL), config.PaymentConfig{MaxRetries: 5, RetryDelay: time.Hour, Timeout: time.Second}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.Charge(ctx, ChargeRequest{Token: "tok", Amount: 1, IdempotencyKey: "r"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEndpointSwap(t *testing.T) {
	first := &fakeGateway{}
	second := &fakeGateway{}
	a := httptest.NewServer(first)
	defer a.Close()
	b := httptest.NewServer(second)
	defer b.Close()

	ep := NewEndpoint(a.URL)
	g := NewGateway(ep, config.PaymentConfig{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, g.Charge(context.Background(), ChargeRequest{Token: "t", Amount: 1, IdempotencyKey: "r1"}))

	ep.Set(b.URL)
	assert.Equal(t, b.URL, ep.URL())
	require.NoError(t, g.Charge(context.Background(), ChargeRequest{Token: "t", Amount: 2, IdempotencyKey: "r2"}))

	assert.Equal(t, []int{1}, first.payments)
	assert.Equal(t, []int{2}, second.payments)
}
