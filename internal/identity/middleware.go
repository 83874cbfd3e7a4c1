package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ginContextKey = "identity.actor"

// AuthMiddleware rejects requests without a valid bearer token and stores the
// resolved actor context for downstream handlers.
func AuthMiddleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		actor, err := service.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ginContextKey, actor)
		c.Next()
	}
}

// FromGin returns the actor context stored by AuthMiddleware.
func FromGin(c *gin.Context) (Context, bool) {
	v, ok := c.Get(ginContextKey)
	if !ok {
		return Context{}, false
	}
	actor, ok := v.(Context)
	return actor, ok
}
