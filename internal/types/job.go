package types

import (
	"time"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/settings"
)

// redacted replaces secret setting values in responses
const redacted = "******"

// JobResponse is the caller view of a job
// Example: {"id":"a1b2","state":"processed","customFields":{"pageCount":"3","downloadUrl":"http://localhost:8080/output/a1b2.zip"}}
type JobResponse struct {
	ID           string            `json:"id"`
	State        models.JobState   `json:"state"`
	ErrorCode    int               `json:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Settings     map[string]string `json:"settings,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewJobResponse builds the response for job with secrets masked
func NewJobResponse(job *models.Job) JobResponse {
	s := job.Settings.Clone()
	if _, ok := s[settings.KeyPassword]; ok {
		s[settings.KeyPassword] = redacted
	}
	return JobResponse{
		ID:           job.ID,
		State:        job.State,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
		Settings:     s,
		CustomFields: job.CustomFields.Clone(),
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// NewJobResponses converts a page of jobs
func NewJobResponses(jobs []models.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, NewJobResponse(&jobs[i]))
	}
	return out
}

// SubmitResponse is returned when a job was accepted
// Example: {"id":"a1b2","state":"queued"}
type SubmitResponse struct {
	ID    string          `json:"id"`
	State models.JobState `json:"state"`
}
