package middleware

import (
	"net/http"
	"strings"

	"numberrush/services"

	"github.com/gin-gonic/gin"
)

const (
	ContextUsername  = "username"
	ContextAccountID = "account_id"
)

type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

// AuthMiddleware requires a valid token, taken from the Authorization header
// or, for websocket upgrades, the token query parameter.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := parser.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUsername, claims.Username())
		c.Set(ContextAccountID, claims.AccountID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Username returns the authenticated username set by AuthMiddleware.
func Username(c *gin.Context) (string, bool) {
	username := c.GetString(ContextUsername)
	return username, username != ""
}
