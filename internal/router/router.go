// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DevViTien/devshop-web-app/internal/cache"
	"github.com/DevViTien/devshop-web-app/internal/config"
	"github.com/DevViTien/devshop-web-app/internal/event"
	"github.com/DevViTien/devshop-web-app/internal/handlers"
	"github.com/DevViTien/devshop-web-app/internal/metrics"
	"github.com/DevViTien/devshop-web-app/internal/middleware"
	"github.com/DevViTien/devshop-web-app/internal/models"
	"github.com/DevViTien/devshop-web-app/internal/repository"
	"github.com/DevViTien/devshop-web-app/internal/services"
)

const Version = "1.0.0"

// Dependencies are the infrastructure pieces the API is built from.
type Dependencies struct {
	Config   *config.Config
	Store    *repository.Store
	Cache    cache.Store
	Events   event.Publisher
	Gateway  services.PaymentGateway
	Links    services.LinkSigner
	Metrics  *metrics.Metrics
	Limiters *middleware.Limiters
}

type Services struct {
	Auth      *services.AuthService
	Users     *services.UserService
	Templates *services.TemplateService
	Orders    *services.OrderService
	Reviews   *services.ReviewService
	Admin     *services.AdminService
}

func NewServices(deps *Dependencies) *Services {
	return &Services{
		Auth:      services.NewAuthService(deps.Store.Users, deps.Config),
		Users:     services.NewUserService(deps.Store.Users),
		Templates: services.NewTemplateService(deps.Store.Templates),
		Orders:    services.NewOrderService(deps.Store, deps.Gateway, deps.Links, deps.Events, deps.Metrics, deps.Config),
		Reviews:   services.NewReviewService(deps.Store, deps.Events, deps.Metrics),
		Admin:     services.NewAdminService(deps.Store),
	}
}

func Initialize(deps *Dependencies, svc *Services) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.Users)
	templateHandler := handlers.NewTemplateHandler(svc.Templates)
	orderHandler := handlers.NewOrderHandler(svc.Orders)
	reviewHandler := handlers.NewReviewHandler(svc.Reviews)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Users, svc.Templates, svc.Orders, svc.Reviews)
	healthHandler := handlers.NewHealthHandler(Version, map[string]handlers.Pinger{
		"database": deps.Store,
		"cache":    deps.Cache,
	})

	idempotent := middleware.Idempotency(deps.Cache)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.CORS(deps.Config.Frontend))
	r.Use(middleware.I18nMiddleware())
	r.Use(deps.Limiters.General.Middleware())
	r.Use(middleware.AuditLogMiddleware(deps.Store.Audit))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", deps.Limiters.Auth.Middleware(), authHandler.Register)
			auth.POST("/login", deps.Limiters.Auth.Middleware(), authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		users := api.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.PUT("/password", userHandler.ChangePassword)
			users.POST("/register-seller", userHandler.RegisterSeller)
			users.GET("/:id", userHandler.GetUser)
		}

		templates := api.Group("/templates")
		{
			templates.GET("", templateHandler.Search)
			templates.GET("/featured", templateHandler.Featured)
			templates.GET("/popular", templateHandler.Popular)
			templates.GET("/mine", middleware.AuthRequired(), templateHandler.Mine)
			templates.GET("/:slug", middleware.OptionalAuth(), templateHandler.GetBySlug)
			templates.GET("/:slug/reviews", reviewHandler.ListByTemplate)
			templates.GET("/:slug/rating", reviewHandler.TemplateRating)

			protected := templates.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", middleware.RoleRequired(models.UserRoleSeller, models.UserRoleAdmin), templateHandler.Create)
				protected.PUT("/:id", templateHandler.Update)
				protected.POST("/:id/submit", templateHandler.Submit)
			}
		}

		orders := api.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("", idempotent, orderHandler.Create)
			orders.GET("", orderHandler.ListPurchases)
			orders.GET("/sales", orderHandler.ListSales)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("/:id/pay", idempotent, orderHandler.ConfirmPayment)
			orders.POST("/:id/download", orderHandler.Download)
			orders.POST("/:id/cancel", orderHandler.Cancel)
			orders.POST("/:id/dispute", orderHandler.OpenDispute)
		}

		reviews := api.Group("/reviews")
		reviews.Use(middleware.AuthRequired())
		{
			reviews.POST("", reviewHandler.Create)
			reviews.GET("/mine", reviewHandler.Mine)
			reviews.PUT("/:id", reviewHandler.Edit)
			reviews.POST("/:id/vote", reviewHandler.Vote)
			reviews.POST("/:id/flag", reviewHandler.Flag)
			reviews.POST("/:id/response", reviewHandler.Respond)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)

			admin.GET("/users", adminHandler.GetUsers)
			admin.PUT("/users/:id/role", adminHandler.ChangeUserRole)
			admin.PUT("/users/:id/status", adminHandler.ChangeUserStatus)
			admin.PUT("/users/:id/verify-seller", adminHandler.VerifySeller)

			admin.PUT("/templates/:id/status", adminHandler.ModerateTemplate)

			admin.GET("/orders/recent", adminHandler.RecentSales)
			admin.POST("/orders/:id/refund", adminHandler.RefundOrder)
			admin.PUT("/orders/:id/dispute", adminHandler.ResolveDispute)

			admin.GET("/reviews/moderation", adminHandler.ReviewModerationQueue)
			admin.PUT("/reviews/:id/status", adminHandler.ModerateReview)
		}
	}

	return r
}
