// Package models contains PUBLIC aliases for the job model.
package models

import (
	internalmodels "github.com/celestiaorg/docconv/internal/db/models"
)

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing API call
	DefaultLimit = internalmodels.DefaultLimit
)

// JobState is the lifecycle state of a job
type JobState = internalmodels.JobState

const (
	JobStateUnknown    = internalmodels.JobStateUnknown
	JobStateQueued     = internalmodels.JobStateQueued
	JobStateProcessing = internalmodels.JobStateProcessing
	JobStateProcessed  = internalmodels.JobStateProcessed
	JobStateError      = internalmodels.JobStateError
)

// Custom field keys reported on a job
const (
	FieldPageCount      = internalmodels.FieldPageCount
	FieldPagesConverted = internalmodels.FieldPagesConverted
	FieldPreviewURL     = internalmodels.FieldPreviewURL
	FieldDownloadURL    = internalmodels.FieldDownloadURL
	FieldRemoteURL      = internalmodels.FieldRemoteURL
)

// ParseJobState converts the wire name of a state
func ParseJobState(s string) (JobState, error) {
	return internalmodels.ParseJobState(s)
}

// ListOptions represents pagination and filtering options for list operations
type ListOptions = internalmodels.ListOptions
