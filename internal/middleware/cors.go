package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/config"
)

func CORS(cfg config.FrontendConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Total-Count", "X-Total-Pages", ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
