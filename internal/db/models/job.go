package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobStateField is the database field name for the job state
	JobStateField = "state"
	// JobCustomFieldsField is the database field name for the custom fields
	JobCustomFieldsField = "custom_fields"
)

// Custom field keys written while a job runs
const (
	FieldPageCount      = "pageCount"
	FieldPagesConverted = "pagesConverted"
	FieldPreviewURL     = "previewUrl"
	FieldDownloadURL    = "downloadUrl"
	FieldRemoteURL      = "remoteUrl"
)

// JobState represents the lifecycle state of a conversion job
type JobState int

// Job state constants
const (
	// JobStateUnknown represents an unknown or invalid job state
	JobStateUnknown JobState = iota
	// JobStateQueued indicates the job was accepted and waits for a free slot
	JobStateQueued
	// JobStateProcessing indicates the job is being converted
	JobStateProcessing
	// JobStateProcessed indicates the job finished and its output is available
	JobStateProcessed
	// JobStateError indicates the job failed; ErrorCode and ErrorMessage are set
	JobStateError
)

var jobStateNames = []string{
	"unknown",
	"queued",
	"processing",
	"processed",
	"error",
}

// Fields is a string map persisted as JSON
type Fields map[string]string

// Job represents one conversion request
type Job struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	State        JobState  `json:"state" gorm:"not null;index"`
	ErrorCode    int       `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty" gorm:"type:text"`
	Settings     Fields    `json:"settings,omitempty" gorm:"type:text;serializer:json"`
	CustomFields Fields    `json:"customFields,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsTerminal reports whether no further transitions can occur
func (s JobState) IsTerminal() bool {
	return s == JobStateProcessed || s == JobStateError
}

// CanTransitionTo reports whether next directly follows s in the job lifecycle.
// Staying in the same non-terminal state is allowed.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateQueued || next == JobStateProcessing || next == JobStateError
	case JobStateProcessing:
		return next == JobStateProcessing || next == JobStateProcessed || next == JobStateError
	default:
		return false
	}
}

// ParseJobState converts a string representation of a job state to JobState type
func ParseJobState(str string) (JobState, error) {
	for i, state := range jobStateNames {
		if state == str {
			return JobState(i), nil
		}
	}

	return JobStateUnknown, fmt.Errorf("invalid job state: %s", str)
}

func (s JobState) String() string {
	if s < 0 || int(s) >= len(jobStateNames) {
		return jobStateNames[JobStateUnknown]
	}
	return jobStateNames[s]
}

// MarshalJSON implements the json.Marshaler interface for JobState
func (s JobState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobState
func (s *JobState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state, err := ParseJobState(str)
	if err != nil {
		return err
	}

	*s = state
	return nil
}

// Clone returns a copy that can be handed out without sharing the map
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
