package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/spegrid/execreview-backend/internal/handlers"
	"github.com/spegrid/execreview-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	BusinessHandler *handlers.BusinessHandler
	ReportHandler   *handlers.ReportHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:5173",
			"http://localhost:5174",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/login", cfg.AuthHandler.Login)

		reports := api.Group("/reports")
		{
			reports.GET("", cfg.ReportHandler.List)
			reports.POST("/executive-summary", cfg.ReportHandler.Generate)
			reports.GET("/progress/:jobId", cfg.ReportHandler.Progress)
			reports.GET("/:fileId", cfg.ReportHandler.Get)
			reports.PUT("/update/:fileId", cfg.ReportHandler.Update)
			reports.GET("/download/:filename", cfg.ReportHandler.Download)
		}
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.POST("/businesses", cfg.BusinessHandler.Create)
	protected.GET("/businesses", cfg.BusinessHandler.List)

	return router
}
