package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raboid/rpa-dispatch/internal/api/handler"
	"github.com/raboid/rpa-dispatch/internal/api/middleware"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "rpa-dispatch-api",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "rpa-dispatch-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	authHandler := handler.NewAuthHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/auth - Exchange worker credentials for a token
		v1.POST("/auth", authHandler.Authenticate)

		// GET /api/v1/stats - Queue depth and barcode pool capacity
		v1.GET("/stats", jobHandler.Stats)

		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs filtered by status or store
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/pending - Pending backlog, oldest first
			jobs.GET("/pending", jobHandler.ListPending)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		// Assignment and result reporting require an authenticated worker.
		worker := v1.Group("/jobs", middleware.AuthMiddleware(deps.Auth))
		{
			// POST /api/v1/jobs/assign - Claim up to ?count= pending jobs
			worker.POST("/assign", jobHandler.AssignBatch)

			// POST /api/v1/jobs/:job_id/assign - Claim a named job
			worker.POST("/:job_id/assign", jobHandler.AssignOne)

			// POST /api/v1/jobs/:job_id/result - Report a terminal outcome
			worker.POST("/:job_id/result", jobHandler.ReportResult)
		}
	}

	return r
}
