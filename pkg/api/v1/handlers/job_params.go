// Package handlers provides HTTP request handling
package handlers

import (
	"fmt"
	"strings"

	"github.com/celestiaorg/docconv/internal/db/models"
)

// JobSubmitParams defines the parameters for submitting a conversion
type JobSubmitParams struct {
	// ID is optional; the server generates one when empty
	ID       string `json:"id,omitempty"`
	FileName string `json:"fileName"`
	// Content is the file, base64 encoded on the wire
	Content  []byte            `json:"content"`
	Settings map[string]string `json:"settings,omitempty"`
	// Output is local or remote
	Output string `json:"output,omitempty"`
}

// Validate validates the parameters for submitting a conversion
func (p JobSubmitParams) Validate() error {
	if p.FileName == "" {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgFileNameRequired))
	}
	if len(p.Content) == 0 {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgContentRequired))
	}
	return nil
}

// JobGetParams defines the parameters for retrieving a job
type JobGetParams struct {
	ID string `json:"id"`
}

// Validate validates the parameters for retrieving a job
func (p JobGetParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgJobIDRequired))
	}
	return nil
}

// JobListParams defines the parameters for listing jobs
type JobListParams struct {
	Page  int    `json:"page,omitempty"`
	State string `json:"state,omitempty"`
}

// Validate validates the parameters for listing jobs
func (p JobListParams) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("page must be a positive number")
	}
	if p.State != "" {
		if _, err := models.ParseJobState(p.State); err != nil {
			return fmt.Errorf("%s: %s", strings.ToLower(ErrMsgInvalidJobState), p.State)
		}
	}
	return nil
}

// StateFilter returns the state to filter on, or nil for all jobs
func (p JobListParams) StateFilter() *models.JobState {
	if p.State == "" {
		return nil
	}
	state, err := models.ParseJobState(p.State)
	if err != nil {
		return nil
	}
	return &state
}

// JobCancelParams defines the parameters for cancelling a job
type JobCancelParams struct {
	ID string `json:"id"`
}

// Validate validates the parameters for cancelling a job
func (p JobCancelParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgJobIDRequired))
	}
	return nil
}
