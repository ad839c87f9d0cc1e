package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/services"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// currentActor returns the authenticated caller. Routes behind AuthRequired
// always have one; otherwise the 401 envelope is written and ok is false.
func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := optionalActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return services.Actor{}, false
	}
	return *actor, true
}

func optionalActor(c *gin.Context) (*services.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}
	role, _ := utils.GetUserRoleFromContext(c)
	return &services.Actor{ID: userID, Role: models.UserRole(role)}, true
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}
