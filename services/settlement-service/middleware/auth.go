package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	RoleAdmin = "admin"

	identityKey     = "identity"
	maxAccountIDLen = 64
)

var ErrNoIdentity = errors.New("account identity not found in context")

// Identity is the caller as asserted by the API gateway. AccountID is the
// account whose balance a bulk run settles against.
type Identity struct {
	AccountID string
	Role      string
}

// RequireAccount reads the gateway identity headers, falling back to the
// session cookies, and rejects requests without a usable account id.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity{
			AccountID: headerOrCookie(c, "X-User-ID", "user_id"),
			Role:      headerOrCookie(c, "X-User-Role", "user_role"),
		}
		if id.AccountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if len(id.AccountID) > maxAccountIDLen || strings.ContainsAny(id.AccountID, " \t\r\n") {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid account id"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole must run after RequireAccount.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := IdentityFrom(c)
		if err != nil || id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": role + " role required"})
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, error) {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok && id.AccountID != "" {
			return id, nil
		}
	}
	return Identity{}, ErrNoIdentity
}

func headerOrCookie(c *gin.Context, header, cookie string) string {
	if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
		return v
	}
	if v, err := c.Cookie(cookie); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}
