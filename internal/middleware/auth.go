// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// bearerClaims extracts and validates the token of a "Bearer <token>" header.
func bearerClaims(c *gin.Context) (*utils.JWTClaims, uuid.UUID, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, uuid.Nil, false
	}

	claims, err := utils.ValidateJWT(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, uuid.Nil, false
	}
	return claims, userID, true
}

func setIdentity(c *gin.Context, claims *utils.JWTClaims, userID uuid.UUID) {
	c.Set(utils.ContextUserID, userID)
	c.Set(utils.ContextUserRole, claims.Role)
	c.Set(utils.ContextEmail, claims.Email)
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			utils.UnauthorizedResponse(c, i18n.KeyAuthRequired)
			c.Abort()
			return
		}

		claims, userID, ok := bearerClaims(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.KeyAuthInvalidToken)
			c.Abort()
			return
		}

		setIdentity(c, claims, userID)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, userID, ok := bearerClaims(c); ok {
			setIdentity(c, claims, userID)
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.UserRoleAdmin)
}

// RoleRequired rejects authenticated users whose role is not listed.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := utils.GetUserRoleFromContext(c)
		if !exists {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}
		for _, allowed := range roles {
			if role == string(allowed) {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, "")
		c.Abort()
	}
}
