// internal/middleware/i18n.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/DevViTien/devshop-web-app/internal/i18n"
	"github.com/DevViTien/devshop-web-app/internal/utils"
)

// I18nMiddleware stores the response language resolved from ?lang= or the
// Accept-Language header.
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Query("lang")
		if header == "" {
			header = c.GetHeader("Accept-Language")
		}
		c.Set(utils.ContextLang, i18n.Resolve(header))
		c.Next()
	}
}
