package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MiaowFISH/jmcomic-crawler/config"
	"github.com/MiaowFISH/jmcomic-crawler/task"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	taskManager *task.Manager
	cfg         *config.Config
}

func NewHandler(tm *task.Manager, cfg *config.Config) *Handler {
	return &Handler{
		taskManager: tm,
		cfg:         cfg,
	}
}

// handleCreateTask accepts an asynchronous packaging submission.
func (h *Handler) handleCreateTask(c *gin.Context) {
	var req task.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.taskManager.Submit(&req)
	if err != nil {
		if errors.Is(err, task.ErrInvalidParameter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"taskId":    t.ID,
		"albumId":   t.AlbumID,
		"status":    t.Status,
		"duplicate": t.Duplicate,
	})
}

// handleListTasks lists all tasks, newest first.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.taskManager.List())
}

// handleGetTaskStatus retrieves the status of a single task.
func (h *Handler) handleGetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	t, err := h.taskManager.Get(taskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

// handleResolveDownload resolves a task's artifact filename to its static
// download URL.
func (h *Handler) handleResolveDownload(c *gin.Context) {
	taskID := c.Param("taskId")
	filename := c.Param("filename")

	t, err := h.taskManager.Get(taskID)
	if err != nil || t.ArtifactFilename == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	if filename != t.ArtifactFilename {
		c.JSON(http.StatusNotFound, gin.H{"error": "filename mismatch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloadUrl": h.absoluteURL(c, t.DownloadURL)})
}

// absoluteURL prefixes the static path with the configured base URL, or the
// request host when no base is configured.
func (h *Handler) absoluteURL(c *gin.Context, path string) string {
	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = scheme + "://" + c.Request.Host
	}
	return strings.TrimSuffix(baseURL, "/") + path
}
