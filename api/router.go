package api

import (
	"github.com/MiaowFISH/jmcomic-crawler/config"
	"github.com/MiaowFISH/jmcomic-crawler/task"
	"github.com/gin-gonic/gin"
)

func SetupRouter(tm *task.Manager, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(tm, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Packaged artifacts are served statically per album directory.
	r.Static(cfg.StaticRoute, cfg.ArtifactsDir)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/tasks", h.handleCreateTask)
		v1.GET("/tasks", h.handleListTasks)
		v1.GET("/tasks/:taskId", h.handleGetTaskStatus)
		v1.GET("/tasks/:taskId/download/:filename", h.handleResolveDownload)
	}
	return r
}
