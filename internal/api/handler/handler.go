package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raboid/rpa-dispatch/internal/auth"
	"github.com/raboid/rpa-dispatch/internal/domain"
	"github.com/raboid/rpa-dispatch/internal/jobs"
	"github.com/raboid/rpa-dispatch/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Jobs   *jobs.Service
	Auth   *auth.Service
	DB     *postgresql.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   *jobs.Service
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// AuthHandler handles worker authentication requests
type AuthHandler struct {
	logger *slog.Logger
	auth   *auth.Service
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger: deps.Logger,
		auth:   deps.Auth,
	}
}

// respondError maps a service error to its HTTP status and writes the
// response.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrStaleAssignment),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoBarcodeAvailable):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
