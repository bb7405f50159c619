package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"river-postproc/internal/models"
	"river-postproc/internal/repository"
	"river-postproc/internal/services"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// ArchiveHandler handles run archive API endpoints
type ArchiveHandler struct {
	archiveService *services.ArchiveService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(
	archiveService *services.ArchiveService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ArchiveHandler {
	return &ArchiveHandler{
		archiveService: archiveService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ListRuns handles GET /api/runs
func (h *ArchiveHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs").Observe(duration.Seconds())
	}()

	// Parse query parameters
	tool := r.URL.Query().Get("tool")
	status := r.URL.Query().Get("status")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	// Default pagination
	page := 1
	limit := 100

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := (page - 1) * limit

	// Build filter
	filter := repository.RunFilter{
		Limit:  limit,
		Offset: offset,
	}

	if tool != "" {
		filter.Tool = &tool
	}

	if status != "" {
		if status != models.RunStatusSuccess && status != models.RunStatusFailure {
			h.sendError(w, r, "invalid status, expected success or failure", http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}

	runs, total, err := h.archiveService.ListRuns(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_RUNS_ERROR] Failed to list runs", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/runs")
		h.sendError(w, r, "failed to retrieve runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*models.RunRecord{}
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       runs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/runs", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetRun handles GET /api/runs/{id}
func (h *ArchiveHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs/{id}").Observe(duration.Seconds())
	}()

	id := mux.Vars(r)["id"]
	run, err := h.archiveService.GetRun(ctx, id)
	if err != nil {
		h.handleLookupError(w, r, "/api/runs/{id}", id, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/runs/{id}", "GET", "200")
	h.sendJSON(w, run, http.StatusOK)
}

// GetDigest handles GET /api/runs/{id}/digest
func (h *ArchiveHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/runs/{id}/digest").Observe(duration.Seconds())
	}()

	id := mux.Vars(r)["id"]
	rows, err := h.archiveService.GetDigest(ctx, id)
	if err != nil {
		h.handleLookupError(w, r, "/api/runs/{id}/digest", id, err)
		return
	}
	if rows == nil {
		rows = []*models.DigestSummary{}
	}

	h.metrics.RecordAPIRequest("/api/runs/{id}/digest", "GET", "200")
	h.sendJSON(w, rows, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ArchiveHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.archiveService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Archive database unhealthy", logging.Fields{
			"error": err.Error(),
		})
		h.sendError(w, r, "archive database unavailable", http.StatusServiceUnavailable)
		return
	}

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// handleLookupError maps a missing run to 404 and anything else to 500
func (h *ArchiveHandler) handleLookupError(w http.ResponseWriter, r *http.Request, endpoint, id string, err error) {
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
		return
	}

	h.logger.Error(r.Context(), "[API_GET_RUN_ERROR] Failed to get run", logging.Fields{
		"run_id":   id,
		"endpoint": endpoint,
	}, err)
	h.metrics.RecordAPIError("internal_error", endpoint)
	h.sendError(w, r, "failed to retrieve run", http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *ArchiveHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ArchiveHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all archive API routes
func (h *ArchiveHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/runs", h.ListRuns).Methods("GET")
	router.HandleFunc("/api/runs/{id}", h.GetRun).Methods("GET")
	router.HandleFunc("/api/runs/{id}/digest", h.GetDigest).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
