package models

import "errors"

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing API call
	DefaultLimit = 50
)

// Job store errors
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrJobExists          = errors.New("job already exists")
	ErrJobTerminal        = errors.New("job is in a terminal state")
	ErrInvalidTransition  = errors.New("invalid job state transition")
	ErrStorageUnavailable = errors.New("job storage unavailable")
	ErrInvalidCustomValue = errors.New("invalid custom value")
)

// ListOptions represents pagination and filtering options for list operations
type ListOptions struct {
	Limit  int       `json:"limit"`  // Number of items to return
	Offset int       `json:"offset"` // Number of items to skip
	State  *JobState `json:"state,omitempty"`
}
