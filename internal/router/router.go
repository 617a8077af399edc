package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/controller"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

// Router wires the small read-only ops surface of the scheduler daemon.
type Router struct {
	runController *controller.RunController
	config        *config.Config
}

func NewRouter(runController *controller.RunController, cfg *config.Config) *Router {
	return &Router{
		runController: runController,
		config:        cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Ops.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/runs/latest", r.runController.GetLatestRun)
	}

	return router
}

// loggingMiddleware logs HTTP requests with structured logging
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		logger.Info("Request handled", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(startTime).String(),
			"ip":       c.ClientIP(),
		})
	}
}
