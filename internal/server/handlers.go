package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/service"
	"github.com/ifuryst/autopost/internal/service/image"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/pkg/util"
)

type platformInfo struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

type validateCredentialsRequest struct {
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
}

type jobRequest struct {
	JobID string `json:"jobId"`
}

// respondError maps service errors onto status codes.
func (s *Server) respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, publisher.ErrAgentNotFound),
		errors.Is(err, image.ErrEmptyPrompt):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrCancelled):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		s.Logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message, "message": util.ErrorMessage(err)})
}

func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err), "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleGetPlatforms(c *gin.Context) {
	names := s.Registry.GetSupportedPlatforms()
	platforms := make([]platformInfo, 0, len(names))
	for _, name := range names {
		platforms = append(platforms, platformInfo{Name: name, Features: s.Registry.GetPlatformFeatures(name)})
	}

	c.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

func (s *Server) handleValidateCredentials(c *gin.Context) {
	var req validateCredentialsRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Platform) == "" {
		s.respondError(c, fmt.Errorf("%w: platform is required", service.ErrInvalidRequest), "Invalid request body")
		return
	}

	valid, err := s.Registry.ValidateCredentials(c.Request.Context(), req.Platform, req.Credentials)
	if err != nil {
		s.respondError(c, err, "Unsupported platform")
		return
	}

	c.JSON(http.StatusOK, gin.H{"platform": strings.ToLower(req.Platform), "valid": valid})
}

func (s *Server) handlePublish(c *gin.Context) {
	var req service.PublishRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.Publisher.HandlePublish(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, "Failed to publish content")
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOrchestrate(c *gin.Context) {
	var req service.OrchestrateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	agg, err := s.Orchestrator.OrchestratePublishing(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, "Failed to orchestrate publishing")
		return
	}

	c.JSON(http.StatusAccepted, agg)
}

func (s *Server) handleRetry(c *gin.Context) {
	var req jobRequest
	if !s.bindJSON(c, &req) {
		return
	}

	agg, err := s.Orchestrator.RetryFailedJobs(c.Request.Context(), req.JobID)
	if err != nil {
		s.respondError(c, err, "Failed to retry jobs")
		return
	}

	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleCancel(c *gin.Context) {
	var req jobRequest
	if !s.bindJSON(c, &req) {
		return
	}

	agg, err := s.Orchestrator.CancelJob(c.Request.Context(), req.JobID)
	if err != nil {
		s.respondError(c, err, "Failed to cancel job")
		return
	}

	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleJobStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		s.respondError(c, fmt.Errorf("%w: jobId is required", service.ErrInvalidRequest), "Invalid request")
		return
	}

	agg, err := s.Orchestrator.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		s.respondError(c, err, "Failed to get job status")
		return
	}
	if agg == nil {
		s.respondError(c, fmt.Errorf("job %s: %w", jobID, service.ErrNotFound), "Job not found")
		return
	}

	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleStats(c *gin.Context) {
	counts, err := s.Stats.CountJobs(c.Request.Context())
	if err != nil {
		s.respondError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, service.SummarizeJobs(counts))
}

func (s *Server) handleGenerateImage(c *gin.Context) {
	if s.Images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Image generation unavailable",
			"message": "no image API key configured",
		})
		return
	}

	var req image.Request
	if !s.bindJSON(c, &req) {
		return
	}

	url, err := s.Images.Generate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, "Failed to generate image")
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": url})
}
