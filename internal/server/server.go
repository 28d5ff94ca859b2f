package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amrrdev/docflow/internal/handler"
	"github.com/amrrdev/docflow/internal/middleware"
	"github.com/amrrdev/docflow/internal/routes"
)

type Handlers struct {
	Files  *handler.FileHandler
	Tasks  *handler.TaskHandler
	Health *handler.HealthHandler
}

func NewServer(h Handlers, authMiddleware *middleware.AuthMiddleware) *gin.Engine {
	g := gin.Default()
	g.Use(middleware.Metrics())

	g.GET("/health", h.Health.Health)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := g.Group("/api/v1")
	routes.RegisterRoutes(api, h.Files, h.Tasks, authMiddleware)

	return g
}
