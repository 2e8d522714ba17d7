package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clipsmith/src/core/clipper"
	"clipsmith/src/core/webhook"
	"clipsmith/src/infrastructure/execx"
	"clipsmith/src/infrastructure/job"
)

// requiredBinaries are the external tools the pipeline shells out to.
var requiredBinaries = []string{"yt-dlp", "ffmpeg"}

type ClipHandler struct {
	jobs     *job.JobService
	repo     job.JobRepository
	webhooks *webhook.Dispatcher
}

func NewClipHandler(jobs *job.JobService, repo job.JobRepository, webhooks *webhook.Dispatcher) *ClipHandler {
	return &ClipHandler{
		jobs:     jobs,
		repo:     repo,
		webhooks: webhooks,
	}
}

// RegisterRoutes registers the clip API routes
func (h *ClipHandler) RegisterRoutes(r *gin.Engine) {
	clip := r.Group("/api/clip")

	clip.GET("", h.Root)
	clip.POST("", h.CreateClip)
	clip.GET("/jobs", h.ListJobs)
	clip.GET("/job/:id", h.GetJobStatus)
	clip.DELETE("/job/:id", h.DeleteJob)
	clip.POST("/webhook/test", h.TestWebhook)
	clip.GET("/health", h.Health)
}

// Common error response structure
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, job.ErrNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, job.ErrConflict):
		code = "CONFLICT"
		status = http.StatusConflict
	default:
		code = "INTERNAL_ERROR"
		if status == 0 {
			status = http.StatusInternalServerError
		}
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

// Root returns the service banner and endpoint index.
func (h *ClipHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "clipsmith clip API",
		"version": "1.0",
		"endpoints": gin.H{
			"POST /api/clip":                "Submit a new clip job (with optional webhook)",
			"GET /api/clip/job/{job_id}":    "Check job status",
			"GET /api/clip/jobs":            "List all jobs",
			"DELETE /api/clip/job/{job_id}": "Delete a job",
			"POST /api/clip/webhook/test":   "Test webhook endpoint",
			"GET /api/clip/health":          "Service health check",
		},
		"webhook_events": webhook.DefaultEvents,
	})
}

// CreateClip accepts a ClipRequest and starts a job. The response is the
// pending job record; processing continues asynchronously.
func (h *ClipHandler) CreateClip(c *gin.Context) {
	var req clipper.ClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
		return
	}
	req.ApplyDefaults()

	payload, err := json.Marshal(req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	j, err := h.jobs.Submit(c.Request.Context(), payload)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, j)
}

// GetJobStatus returns the current job record.
func (h *ClipHandler) GetJobStatus(c *gin.Context) {
	j, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListJobs returns known jobs, most recently created first.
func (h *ClipHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "BAD_REQUEST",
				Message: "limit must be an integer",
			})
			return
		}
		limit = n
	}

	jobs, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// DeleteJob removes the job record. It does not stop an in-flight run; the
// record simply stops being queryable.
func (h *ClipHandler) DeleteJob(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully"})
}

// TestWebhook delivers a fixed sample payload to the supplied config and
// reports the outcome.
func (h *ClipHandler) TestWebhook(c *gin.Context) {
	var cfg webhook.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
		return
	}

	payload := webhook.Payload{
		Event:     "completed",
		JobID:     "test-job-123",
		Status:    "completed",
		VideoID:   "test-video-xyz",
		VideoURL:  job.WatchURL("test-video-xyz"),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if !h.webhooks.Send(c.Request.Context(), cfg, payload) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to send test webhook. Check the server logs for more details.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Test webhook sent successfully",
		"payload": payload,
	})
}

// Health probes the external binaries the pipeline depends on.
func (h *ClipHandler) Health(c *gin.Context) {
	var missing []string
	for _, binary := range requiredBinaries {
		if !execx.Available(binary) {
			missing = append(missing, binary)
		}
	}

	if len(missing) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"status":    "degraded",
			"message":   fmt.Sprintf("Missing required binaries: %v", missing),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"message":   "Clipper service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
