// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file establishes the request identity. A valid bearer token sets the
// "userID" and "userName" context keys used by the rate limiter, the
// idempotency validator and the handlers. Without a token, the X-User-ID
// header is honored for development and tests. A request with neither is
// anonymous, which is a valid "not signed in" state.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/auth"
	"github.com/tbourn/go-donation-tracker/internal/domain"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUserName = "userName"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Secret verifies HS256 bearer tokens.
	Secret []byte
	// AllowHeaderIdentity accepts X-User-ID / X-User-Name when no token is sent.
	AllowHeaderIdentity bool
}

// Authenticate resolves the caller. An invalid token is rejected with 401;
// a missing one is not.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			actor, err := auth.ParseToken(tok, opts.Secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "unauthorized",
					"message":    "invalid or expired token",
				})
				return
			}
			setActor(c, actor)
			c.Next()
			return
		}

		if opts.AllowHeaderIdentity {
			if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
				name := strings.TrimSpace(c.GetHeader("X-User-Name"))
				if name == "" {
					name = id
				}
				setActor(c, domain.Actor{ID: id, Name: name})
			}
		}
		c.Next()
	}
}

func setActor(c *gin.Context, a domain.Actor) {
	c.Set(ctxKeyUserID, a.ID)
	c.Set(ctxKeyUserName, a.Name)
}

// ActorFrom returns the signed-in actor, if any.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	id := c.GetString(ctxKeyUserID)
	if id == "" {
		return domain.Actor{}, false
	}
	name := c.GetString(ctxKeyUserName)
	if name == "" {
		name = id
	}
	return domain.Actor{ID: id, Name: name}, true
}
