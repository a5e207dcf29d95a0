package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrBarcodeNotFound is returned when a barcode code is unknown
	ErrBarcodeNotFound = errors.New("barcode not found")

	// ErrWorkerNotFound is returned when a worker id is not registered
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrAlreadyAssigned is returned when a conditional assignment matched no
	// rows because the job is no longer pending
	ErrAlreadyAssigned = errors.New("job already assigned or not in pending status")

	// ErrStaleAssignment is returned when a result report arrives after the
	// job was reclaimed or re-assigned; the report is discarded
	ErrStaleAssignment = errors.New("stale assignment: job no longer held by this worker")

	// ErrInvalidTransition is returned when the requested status change is not
	// an edge of the job state machine
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrNoBarcodeAvailable is returned when the barcode pool has no unused
	// codes left
	ErrNoBarcodeAvailable = errors.New("no available barcodes")

	// ErrValidation is returned for malformed requests
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when worker credentials or tokens are rejected
	ErrUnauthorized = errors.New("unauthorized")
)
