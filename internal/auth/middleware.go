package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	userIDKey   = "user_id"
)

// Middleware resolves the bearer token and stores the identity on the context.
func Middleware(resolver IdentityResolver, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var id services.Identity
			if id, err = resolver.Resolve(c.Request.Context(), token); err == nil {
				SetIdentity(c, id)
				c.Next()
				return
			}
		}

		utils.GetLoggerFromContext(c).Warn("Authentication failed", "error", err)
		message := "Invalid token"
		if errors.Is(err, ErrMissingToken) {
			message = "Authorization header required"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"message": message,
			"code":    "UNAUTHORIZED",
		})
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func SetIdentity(c *gin.Context, id services.Identity) {
	c.Set(identityKey, id)
	c.Set(userIDKey, id.UserID)
}

// IdentityFrom returns the identity set by Middleware.
func IdentityFrom(c *gin.Context) (services.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return services.Identity{}, false
	}
	id, ok := v.(services.Identity)
	return id, ok && id.UserID != ""
}
