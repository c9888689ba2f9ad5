// router.go - Route table of the API

package handlers

import (
	"net/http"
	"time"

	"cima-backend/logging"
	"cima-backend/metrics"
	"cima-backend/middleware"
	"cima-backend/realtime"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(h *Handler, origins []string) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(), cors.New(corsConfig(origins)))

	// Public routes (no authentication required)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", gin.WrapF(h.Hub.ServeWebSocket(realtime.NewUpgrader(origins))))

	api := r.Group("/api")
	authn := middleware.AuthMiddleware(h.Tokens, h.Users)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.GET("/verify/:token", h.VerifyEmail)
		authRoutes.POST("/login", h.Login)
		authRoutes.POST("/forgot-password", h.ForgotPassword)
		authRoutes.POST("/reset-password", h.ResetPassword)
	}

	reports := api.Group("/reports")
	{
		reports.GET("", h.ListReports)
		reports.GET("/stream", h.StreamReports)
		reports.GET("/:id", h.GetReport)
		reports.POST("", authn, h.CreateReport)
	}

	// Protected routes: any signed-in user
	users := api.Group("/users", authn)
	{
		users.GET("/me", h.Me)
		users.PUT("/profile", h.UpdateProfile)
		users.PUT("/password", h.ChangePassword)
		users.PUT("/preferences", h.UpdatePreferences)
	}

	// Admin routes: signed-in user with the admin role
	admin := api.Group("/admin", authn, middleware.AdminMiddleware())
	{
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:id/promote", h.PromoteUser)
		admin.GET("/reports", h.ListReports)
		admin.DELETE("/reports/:id", h.DeleteReport)
		admin.PATCH("/reports/:id/status", h.UpdateReportStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		respondMessage(c, http.StatusNotFound, "Not found")
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
