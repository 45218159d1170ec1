package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/config"
	"anon-dialog-server/internal/handlers"
	"anon-dialog-server/internal/middleware"
	"anon-dialog-server/internal/models"
	"anon-dialog-server/internal/notify"
)

// Deps holds everything the handlers need.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Service *anon.Service
	Inbox   *notify.Inbox
	Hub     *notify.Hub
	Log     *zap.Logger
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Deps) {
	cfg := deps.Config

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.DB, cfg, deps.Log)
	userHandler := handlers.NewUserHandler(deps.DB, deps.Log)
	anonHandler := handlers.NewAnonHandler(deps.Service, deps.Log)
	notificationHandler := handlers.NewNotificationHandler(deps.Inbox, deps.Log)
	wsHandler := handlers.NewWSHandler(deps.Hub, cfg.Origin, deps.Log)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		// Admin-only user management
		userRoutes := private.Group("/users")
		userRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PATCH("/:id/role", userHandler.UpdateUserRole)
		}

		anonRoutes := private.Group("/anon")
		{
			anonRoutes.POST("/messages", anonHandler.SendDirect)
			anonRoutes.POST("/admin", anonHandler.ContactAdmins)
			anonRoutes.GET("/dialogs/active", anonHandler.ActiveDialog)
			anonRoutes.POST("/dialogs/exit", anonHandler.Exit)
			anonRoutes.POST("/dialogs/:code/messages", anonHandler.Reply)
			anonRoutes.POST("/dialogs/:code/close", anonHandler.Close)
			anonRoutes.POST("/consent/:id", anonHandler.Consent)
			anonRoutes.GET("/preferences", anonHandler.GetPreference)
			anonRoutes.PUT("/preferences", anonHandler.SetPreference)
			anonRoutes.POST("/actions", anonHandler.Action)
			anonRoutes.POST("/public", anonHandler.SubmitPublic)
			anonRoutes.POST("/public/:id/moderate", anonHandler.ModeratePublic)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.List)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkRead)
		}
	}

	// Browsers cannot send an Authorization header on the websocket handshake.
	router.GET("/ws", middleware.QueryTokenMiddleware(cfg), wsHandler.Stream)

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
