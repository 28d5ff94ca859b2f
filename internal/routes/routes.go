package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/amrrdev/docflow/internal/handler"
	"github.com/amrrdev/docflow/internal/middleware"
)

func RegisterRoutes(router *gin.RouterGroup, fileHandler *handler.FileHandler, taskHandler *handler.TaskHandler, authMiddleware *middleware.AuthMiddleware) {
	router.Use(authMiddleware.RequireAuth())

	router.POST("/files", fileHandler.Upload)

	tasks := router.Group("/tasks")
	{
		tasks.GET("/:taskId/status", taskHandler.Status)
		tasks.GET("/:taskId/results", taskHandler.Results)
	}
}
