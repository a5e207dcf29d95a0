package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raboid/rpa-dispatch/internal/api/dto"
	"github.com/raboid/rpa-dispatch/internal/api/middleware"
	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/jobs"
)

const (
	defaultAssignCount = 1
	maxAssignCount     = 50
)

// CreateJob handles POST /api/v1/jobs
// Registers a product, consumes a barcode for it, and enqueues a pending job.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), jobs.CreateParams{
		StoreID:     req.StoreID,
		ProductCode: req.ProductCode,
		ProductName: req.ProductName,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// ListPending handles GET /api/v1/jobs/pending
// Returns the pending backlog, oldest first.
func (h *JobHandler) ListPending(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be an integer",
			})
			return
		}
		limit = n
	}

	pending, err := h.jobs.ListPending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:  dto.FromJobs(pending),
		Count: len(pending),
	})
}

// AssignBatch handles POST /api/v1/jobs/assign
// Claims up to ?count= pending jobs for the authenticated worker.
func (h *JobHandler) AssignBatch(c *gin.Context) {
	workerID := middleware.WorkerID(c)

	count := defaultAssignCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "count must be a positive integer",
			})
			return
		}
		count = n
	}
	if count > maxAssignCount {
		count = maxAssignCount
	}

	assigned, err := h.jobs.AssignBatch(c.Request.Context(), workerID, count)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:  dto.FromJobs(assigned),
		Count: len(assigned),
	})
}

// AssignOne handles POST /api/v1/jobs/:job_id/assign
// Claims a single named job for the authenticated worker.
func (h *JobHandler) AssignOne(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	jobID := c.Param("job_id")

	job, err := h.jobs.AssignOne(c.Request.Context(), jobID, workerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ReportResult handles POST /api/v1/jobs/:job_id/result
// Records the terminal outcome of a job held by the authenticated worker.
func (h *JobHandler) ReportResult(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	jobID := c.Param("job_id")

	var req dto.ReportResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	outcome := domain.Outcome{
		Success:      req.Success,
		ErrorMessage: req.ErrorMessage,
	}
	if err := h.jobs.ReportResult(c.Request.Context(), jobID, workerID, outcome); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": string(outcome.TerminalStatus()),
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs filtered by status or store.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	var (
		list []domain.Job
		err  error
	)
	switch {
	case req.Status != "":
		status, parseErr := domain.ParseJobStatus(req.Status)
		if parseErr != nil {
			respondError(c, h.logger, parseErr)
			return
		}
		list, err = h.jobs.ListByStatus(c.Request.Context(), status)
	case req.StoreID != "":
		list, err = h.jobs.ListByStore(c.Request.Context(), req.StoreID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "status or store_id query parameter is required",
		})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:  dto.FromJobs(list),
		Count: len(list),
	})
}

// Stats handles GET /api/v1/stats
// Reports queue depth per status and remaining barcode capacity.
func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		Pending:           stats.PendingJobs,
		InProgress:        stats.InProgressJobs,
		Completed:         stats.CompletedJobs,
		Failed:            stats.FailedJobs,
		BarcodesAvailable: stats.AvailableBarcodes,
	})
}
