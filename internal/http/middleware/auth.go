// README: Session auth middleware; resolves the role's cookie or a Bearer token to a caller.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"isuride/internal/modules/session"
	"isuride/internal/types"
)

const (
	ctxCallerID   = "caller_id"
	ctxCallerRole = "caller_role"
)

var sessionCookies = map[session.Role]string{
	session.RoleUser:  "app_session",
	session.RoleOwner: "owner_session",
	session.RoleChair: "chair_session",
}

// SessionCookie is the cookie that carries role's access token.
func SessionCookie(role session.Role) string {
	return sessionCookies[role]
}

// SessionResolver is the lookup Auth depends on.
type SessionResolver interface {
	Authenticate(ctx context.Context, role session.Role, token string) (*session.Principal, error)
}

// Auth admits requests carrying a valid access token for role.
func Auth(resolver SessionResolver, role session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c, role)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}
		p, err := resolver.Authenticate(c.Request.Context(), role, token)
		if err != nil {
			if errors.Is(err, types.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(ctxCallerID, p.ID)
		c.Set(ctxCallerRole, p.Role)
		c.Next()
	}
}

func tokenFrom(c *gin.Context, role session.Role) string {
	if v, err := c.Cookie(SessionCookie(role)); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// CallerID returns the authenticated id, or "" outside Auth.
func CallerID(c *gin.Context) types.ID {
	v, _ := c.Get(ctxCallerID)
	id, _ := v.(types.ID)
	return id
}

func CallerRole(c *gin.Context) session.Role {
	v, _ := c.Get(ctxCallerRole)
	r, _ := v.(session.Role)
	return r
}
