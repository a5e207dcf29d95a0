package dto

import (
	"time"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

type AuthRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type CreateJobRequest struct {
	StoreID     string `json:"store_id" binding:"required"`
	ProductCode string `json:"product_code" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	PriceCents  int64  `json:"price_cents"`
}

type ReportResultRequest struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
}

type ListJobsRequest struct {
	Status  string `form:"status"`
	StoreID string `form:"store_id"`
	Limit   int    `form:"limit"`
}

type ProductDTO struct {
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	PriceCents  int64  `json:"price_cents"`
	Barcode     string `json:"barcode"`
	StoreID     string `json:"store_id"`
}

type JobDTO struct {
	JobID          string     `json:"job_id"`
	StoreID        string     `json:"store_id"`
	Product        ProductDTO `json:"product"`
	Status         string     `json:"status"`
	AssignedWorker string     `json:"assigned_worker,omitempty"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      string     `json:"created_at"`
	StartedAt      string     `json:"started_at,omitempty"`
	CompletedAt    string     `json:"completed_at,omitempty"`
	ExpiresAt      string     `json:"expires_at,omitempty"`
	UpdatedAt      string     `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs  []JobDTO `json:"jobs"`
	Count int      `json:"count"`
}

type StatsResponse struct {
	Pending           int `json:"pending"`
	InProgress        int `json:"in_progress"`
	Completed         int `json:"completed"`
	Failed            int `json:"failed"`
	BarcodesAvailable int `json:"barcodes_available"`
}

// FromJob converts a domain job into its wire shape.
func FromJob(job *domain.Job) JobDTO {
	d := JobDTO{
		JobID:   job.JobID,
		StoreID: job.StoreID,
		Product: ProductDTO{
			ProductID:   job.Product.ProductID,
			ProductCode: job.Product.ProductCode,
			ProductName: job.Product.ProductName,
			PriceCents:  job.Product.PriceCents,
			Barcode:     job.Product.Barcode,
			StoreID:     job.Product.StoreID,
		},
		Status:     string(job.Status),
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  job.UpdatedAt.Format(time.RFC3339),
	}

	if job.AssignedWorker.Valid {
		d.AssignedWorker = job.AssignedWorker.String
	}
	if job.ErrorMessage.Valid {
		d.ErrorMessage = job.ErrorMessage.String
	}
	if job.StartedAt.Valid {
		d.StartedAt = job.StartedAt.Time.Format(time.RFC3339)
	}
	if job.CompletedAt.Valid {
		d.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}
	if job.ExpiresAt.Valid {
		d.ExpiresAt = job.ExpiresAt.Time.Format(time.RFC3339)
	}

	return d
}

// FromJobs converts a slice of domain jobs, preserving order.
func FromJobs(jobs []domain.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i := range jobs {
		out[i] = FromJob(&jobs[i])
	}
	return out
}
