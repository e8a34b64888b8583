package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/errs"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/services"
	"github.com/rs/zerolog"
)

// SessionCookie carries the session token between the browser and the API.
const SessionCookie = "token"

const accountKey = "account"

type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*models.User, error)
}

// Authenticated resolves the session cookie to an account and stores it on
// the context for handlers.
func Authenticated(v SessionVerifier, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		u, err := v.VerifySession(c.Request.Context(), token)
		if err != nil {
			WriteError(c, log, err)
			return
		}
		c.Set(accountKey, u)
		c.Next()
	}
}

// RequireRole must run after Authenticated.
func RequireRole(log zerolog.Logger, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.RequireRole(CurrentUser(c), roles...); err != nil {
			WriteError(c, log, err)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated account, or nil on public routes.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// MustUser is CurrentUser for handlers behind Authenticated.
func MustUser(c *gin.Context) (*models.User, error) {
	u := CurrentUser(c)
	if u == nil {
		return nil, errs.Auth("User is not authenticated")
	}
	return u, nil
}
