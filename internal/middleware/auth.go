package middleware

import (
	"net/http"
	"strings"

	"solarchat/internal/models"
	"solarchat/internal/utils"
	"solarchat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// IdentityAuth validates the identity token and attaches the verified
// {id, name, role} claim to the request context. The token arrives as a
// Bearer header, or as a `token` query parameter for WebSocket upgrades
// where headers are awkward for browser clients.
func IdentityAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Missing identity token")
			c.Abort()
			return
		}

		identity, err := utils.ParseIdentityToken(tokenString)
		if err != nil {
			logger.WithError(err).Warn("Rejected identity token")
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid identity token")
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireStaff restricts a route to mentor and admin roles. Must run
// after IdentityAuth.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || !identity.IsStaff() {
			utils.ErrorResponse(c, http.StatusForbidden, "Mentor role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin restricts a route to the admin role. Must run after
// IdentityAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || identity.Role != models.RoleAdmin {
			utils.ErrorResponse(c, http.StatusForbidden, "Admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity returns the verified identity claim set by IdentityAuth.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

// extractToken pulls the token from the Authorization header or the
// token query parameter.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != authHeader {
			return token
		}
	}
	return c.Query("token")
}
