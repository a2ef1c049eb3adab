package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"isuride/internal/http/middleware"
	"isuride/internal/modules/session"
	"isuride/internal/types"
)

// stubResolver accepts exactly one token per role.
type stubResolver struct {
	tokens map[session.Role]string
	err    error
}

func (s *stubResolver) Authenticate(_ context.Context, role session.Role, token string) (*session.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.tokens[role] != token {
		return nil, session.ErrInvalidToken
	}
	return &session.Principal{Role: role, ID: types.ID(string(role) + "-1")}, nil
}

func newTestRouter(resolver middleware.SessionResolver, role session.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(zap.NewNop()))
	r.GET("/test", middleware.Auth(resolver, role), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": middleware.CallerID(c), "role": middleware.CallerRole(c)})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestAuth(t *testing.T) {
	resolver := &stubResolver{tokens: map[session.Role]string{
		session.RoleUser:  "user-token",
		session.RoleChair: "chair-token",
	}}

	tests := []struct {
		name   string
		role   session.Role
		cookie *http.Cookie
		header string
		want   int
		body   string
	}{
		{name: "missing", role: session.RoleUser, want: http.StatusUnauthorized},
		{name: "cookie", role: session.RoleUser, cookie: &http.Cookie{Name: "app_session", Value: "user-token"}, want: http.StatusOK, body: "user-1"},
		{name: "bearer", role: session.RoleChair, header: "Bearer chair-token", want: http.StatusOK, body: "chair-1"},
		{name: "wrong prefix", role: session.RoleChair, header: "Token chair-token", want: http.StatusUnauthorized},
		{name: "other role cookie", role: session.RoleChair, cookie: &http.Cookie{Name: "app_session", Value: "chair-token"}, want: http.StatusUnauthorized},
		{name: "token of another role", role: session.RoleOwner, header: "Bearer user-token", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(resolver, tc.role)
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.body != "" {
				assert.True(t, strings.Contains(w.Body.String(), tc.body), w.Body.String())
			}
		})
	}
}

func TestAuth_ResolverFailureIsInternal(t *testing.T) {
	r := newTestRouter(&stubResolver{err: errors.New("db down")}, session.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(&stubResolver{}, session.RoleUser)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestSessionCookie(t *testing.T) {
	assert.Equal(t, "app_session", middleware.SessionCookie(session.RoleUser))
	assert.Equal(t, "owner_session", middleware.SessionCookie(session.RoleOwner))
	assert.Equal(t, "chair_session", middleware.SessionCookie(session.RoleChair))
}
