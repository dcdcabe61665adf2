package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/service"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
)

// maxUploadSize caps accepted document uploads at 20 MB
const maxUploadSize = 20 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	runService service.RunService
	logger     Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(runService service.RunService, logger Logger) *Handlers {
	return &Handlers{
		runService: runService,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RunResponse represents a run in API responses
type RunResponse struct {
	RunID           string                    `json:"run_id"`
	DocumentRef     string                    `json:"document_ref"`
	Filename        string                    `json:"filename"`
	Status          string                    `json:"status"`
	Classification  *run.Classification       `json:"classification,omitempty"`
	ExtractedFields map[string]run.FieldValue `json:"extracted_fields,omitempty"`
	ValidationFlags []run.Flag                `json:"validation_flags,omitempty"`
	Routing         *run.Decision             `json:"routing,omitempty"`
	RetryCounts     map[string]int            `json:"retry_counts,omitempty"`
	StageHistory    []run.StageRecord         `json:"stage_history,omitempty"`
	FailureReason   string                    `json:"failure_reason,omitempty"`
	StartedAt       string                    `json:"started_at"`
	CompletedAt     *string                   `json:"completed_at,omitempty"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitDocument handles POST /api/v1/documents
func (h *Handlers) SubmitDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.logger.Error("Missing document upload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "multipart field 'file' is required",
		})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   "document exceeds the upload size limit",
		})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		h.logger.Error("Failed to read document upload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "failed to read uploaded document",
		})
		return
	}
	if len(content) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   "document exceeds the upload size limit",
		})
		return
	}

	state, err := h.runService.SubmitDocument(c.Request.Context(), header.Filename, content)
	if err != nil {
		h.logger.Error("Document submission failed", "filename", header.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to submit document",
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    toRunResponse(state),
	})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	runs, err := h.runService.ListRuns(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve runs",
		})
		return
	}

	responseRuns := make([]RunResponse, 0, len(runs))
	for _, state := range runs {
		responseRuns = append(responseRuns, toRunResponse(state))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responseRuns,
	})
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	runID := c.Param("id")

	state, err := h.runService.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("Failed to get run", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve run",
		})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "run not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toRunResponse(state),
	})
}

// CancelRun handles POST /api/v1/runs/:id/cancel
func (h *Handlers) CancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := h.runService.CancelRun(c.Request.Context(), runID); err != nil {
		status := http.StatusConflict
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		h.logger.Error("Run cancellation rejected", "run_id", runID, "error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    gin.H{"run_id": runID, "cancellation": "requested"},
	})
}

// toRunResponse converts run state to API response
func toRunResponse(state *run.State) RunResponse {
	resp := RunResponse{
		RunID:           state.RunID,
		DocumentRef:     state.DocumentRef,
		Filename:        state.Filename,
		Status:          state.Status.String(),
		Classification:  state.Classification,
		ExtractedFields: state.ExtractedFields,
		ValidationFlags: state.ValidationFlags,
		Routing:         state.Routing,
		RetryCounts:     state.RetryCounts,
		StageHistory:    state.StageHistory,
		FailureReason:   state.FailureReason,
		StartedAt:       state.StartedAt.Format(time.RFC3339),
	}

	if state.CompletedAt != nil {
		completedAt := state.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}

	return resp
}
