// README: Minimal JSON client for the isuride API used by the bench cases.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

type apiClient struct {
	base  string
	httpc *http.Client
}

type coordinate struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

// do sends body as JSON with a Bearer token and decodes a 2xx JSON reply into out.
func (a *apiClient) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// expect runs do and fails unless the status is want.
func (a *apiClient) expect(ctx context.Context, want int, method, path, token string, body, out any) error {
	status, err := a.do(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("%s %s: status=%d want %d", method, path, status, want)
	}
	return nil
}

type benchUser struct {
	ID             string `json:"id"`
	AccessToken    string `json:"access_token"`
	InvitationCode string `json:"invitation_code"`
	PaymentToken   string `json:"-"`
}

type benchOwner struct {
	ID                 string `json:"id"`
	AccessToken        string `json:"access_token"`
	ChairRegisterToken string `json:"chair_register_token"`
}

type benchChair struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	AccessToken string `json:"access_token"`
}

var nameSeq atomic.Int64

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), nameSeq.Add(1))
}

func (a *apiClient) registerUser(ctx context.Context, invitation string) (*benchUser, int, error) {
	var u benchUser
	status, err := a.do(ctx, http.MethodPost, "/api/app/users", "", map[string]string{
		"username":        uniqueName("bench-user"),
		"firstname":       "Bench",
		"lastname":        "Rider",
		"date_of_birth":   "2000-01-01",
		"invitation_code": invitation,
	}, &u)
	if err != nil || status != http.StatusCreated {
		return nil, status, err
	}
	return &u, status, nil
}

// registerPayingUser registers a user with a payment token.
func (a *apiClient) registerPayingUser(ctx context.Context) (*benchUser, error) {
	u, status, err := a.registerUser(ctx, "")
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("register user: status=%d", status)
	}
	u.PaymentToken = uniqueName("pay")
	if err := a.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/app/payment-methods", u.AccessToken,
		map[string]string{"token": u.PaymentToken}, nil); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *apiClient) registerOwner(ctx context.Context) (*benchOwner, error) {
	var o benchOwner
	if err := a.expect(ctx, http.StatusCreated, http.MethodPost, "/api/owner/owners", "",
		map[string]string{"name": uniqueName("bench-owner")}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (a *apiClient) registerChair(ctx context.Context, o *benchOwner, model string) (*benchChair, error) {
	var c benchChair
	if err := a.expect(ctx, http.StatusCreated, http.MethodPost, "/api/chair/chairs", "", map[string]string{
		"name":                 uniqueName("bench-chair"),
		"model":                model,
		"chair_register_token": o.ChairRegisterToken,
	}, &c); err != nil {
		return nil, err
	}
	if err := a.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/chair/activity", c.AccessToken,
		map[string]bool{"is_active": true}, nil); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *apiClient) ping(ctx context.Context, c *benchChair, at coordinate) error {
	return a.expect(ctx, http.StatusOK, http.MethodPost, "/api/chair/coordinate", c.AccessToken, at, nil)
}

type chairNotification struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

// claim polls until the chair holds rideID, declining any other ride it is handed.
func (a *apiClient) claim(ctx context.Context, c *benchChair, rideID string) error {
	for i := 0; i < 20; i++ {
		var n chairNotification
		status, err := a.do(ctx, http.MethodGet, "/api/chair/notification", c.AccessToken, nil, &n)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK && n.RideID == rideID:
			return nil
		case status == http.StatusOK:
			if err := a.setStatus(ctx, c, n.RideID, "MATCHING"); err != nil {
				return err
			}
		case status != http.StatusNoContent:
			return fmt.Errorf("poll: status=%d", status)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("ride %s was never dispatched to chair %s", rideID, c.ID)
}

func (a *apiClient) setStatus(ctx context.Context, c *benchChair, rideID, status string) error {
	return a.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/chair/rides/"+rideID+"/status", c.AccessToken,
		map[string]string{"status": status}, nil)
}

type rideRoute struct {
	Pickup      coordinate `json:"pickup_coordinate"`
	Destination coordinate `json:"destination_coordinate"`
}

func (a *apiClient) requestRide(ctx context.Context, u *benchUser, route rideRoute) (string, int, error) {
	var out struct {
		RideID string `json:"ride_id"`
		Fare   int    `json:"fare"`
	}
	if err := a.expect(ctx, http.StatusAccepted, http.MethodPost, "/api/app/rides", u.AccessToken, route, &out); err != nil {
		return "", 0, err
	}
	return out.RideID, out.Fare, nil
}

func (a *apiClient) rideStatus(ctx context.Context, u *benchUser, rideID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := a.expect(ctx, http.StatusOK, http.MethodGet, "/api/app/rides/"+rideID, u.AccessToken, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
