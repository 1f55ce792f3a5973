package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainauth "dmchat/internal/domain/auth"
)

const identityContextKey = "dmchat.identity"

// Authenticator is the identity gate the middleware delegates to.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domainauth.Identity, error)
}

type AuthMiddleware struct {
	Gate   Authenticator
	Logger *slog.Logger
}

// Required rejects requests without a valid bearer credential and stores the
// caller identity on the context otherwise.
func (m AuthMiddleware) Required(c *gin.Context) {
	token := domainauth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": msgProvideToken})
		return
	}
	if m.Gate == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"msg": msgTryAgain})
		return
	}
	identity, err := m.Gate.Authenticate(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrUnauthenticated) && m.Logger != nil {
			m.Logger.Error("authentication failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": msgSessionExpired})
		return
	}
	c.Set(identityContextKey, identity)
	c.Request = c.Request.WithContext(domainauth.WithIdentity(c.Request.Context(), identity))
	c.Next()
}

func currentIdentity(c *gin.Context) (domainauth.Identity, bool) {
	val, exists := c.Get(identityContextKey)
	if !exists {
		return domainauth.Identity{}, false
	}
	identity, ok := val.(domainauth.Identity)
	return identity, ok && identity.Valid()
}

// requireIdentity writes a 401 when the route was mounted without the middleware.
func requireIdentity(c *gin.Context) (domainauth.Identity, bool) {
	identity, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": msgProvideToken})
		return domainauth.Identity{}, false
	}
	return identity, true
}
