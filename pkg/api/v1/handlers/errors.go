// Package handlers provides HTTP request handling
package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/services"
)

// Common error messages
const (
	ErrMsgInvalidParams    = "Invalid parameters"
	ErrMsgInvalidReqFormat = "Invalid request format"
	ErrMsgMethodRequired   = "Method is required"
	ErrMsgUnknownMethod    = "Unknown method"
	ErrMsgUnknownJobMethod = "Unknown job method"
	ErrMsgNotConfigured    = "Job handlers not configured"
)

// Job error messages
const (
	ErrMsgJobIDRequired     = "Job id is required"
	ErrMsgFileNameRequired  = "File name is required"
	ErrMsgContentRequired   = "File content is required"
	ErrMsgFileRequired      = "A file upload is required"
	ErrMsgFileReadFailed    = "Failed to read uploaded file"
	ErrMsgJobNotFound       = "Job not found"
	ErrMsgJobSubmitFailed   = "Failed to submit job"
	ErrMsgJobGetFailed      = "Failed to get job"
	ErrMsgJobListFailed     = "Failed to list jobs"
	ErrMsgJobCancelFailed   = "Failed to cancel job"
	ErrMsgInvalidJobState   = "Invalid job state"
	ErrMsgJobAlreadyEnded   = "Job already finished"
	ErrMsgJobAlreadyExists  = "Job already exists"
	ErrMsgQueueFull         = "Conversion queue is full"
	ErrMsgServiceNotReady   = "Service unavailable"
	ErrMsgInvalidSubmission = "Invalid submission"
)

// Pagination error messages
const (
	ErrMsgNegativePagination = "Page must be a positive number from 1"
)

// statusFor maps coordinator and store errors to an HTTP status and message.
// fallback is used for anything unexpected.
func statusFor(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return fiber.StatusNotFound, ErrMsgJobNotFound
	case errors.Is(err, models.ErrJobExists):
		return fiber.StatusConflict, ErrMsgJobAlreadyExists
	case errors.Is(err, models.ErrJobTerminal):
		return fiber.StatusConflict, ErrMsgJobAlreadyEnded
	case errors.Is(err, services.ErrQueueFull):
		return fiber.StatusTooManyRequests, ErrMsgQueueFull
	case errors.Is(err, services.ErrShuttingDown), errors.Is(err, models.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable, ErrMsgServiceNotReady
	case errors.Is(err, services.ErrInvalidSettings),
		errors.Is(err, services.ErrUnsupportedFile),
		errors.Is(err, services.ErrInvalidJobID):
		return fiber.StatusBadRequest, ErrMsgInvalidSubmission
	default:
		return fiber.StatusInternalServerError, fallback
	}
}

// errorDetails is the error text shown to callers. Server side failures are only
// logged since their text can name files on the host.
func errorDetails(status int, err error) interface{} {
	if status >= fiber.StatusInternalServerError {
		logger.Errorf("Request failed with status %d: %v", status, err)
		return nil
	}
	return err.Error()
}
