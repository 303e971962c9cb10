// Package types contains PUBLIC aliases for internal request/response structs.
//
// NOTE: This package uses type aliases to internal definitions
// as a temporary measure. This should be revisited
// during a proper refactoring to define stable public types.
package types

import (
	internaltypes "github.com/celestiaorg/docconv/internal/types"
)

// ListResponse is a page of rows with pagination info (public alias).
type ListResponse[T any] = internaltypes.ListResponse[T]

// PaginationResponse describes the page of a listing (public alias).
type PaginationResponse = internaltypes.PaginationResponse

// ErrorResponse is the body of a failed REST call (public alias).
type ErrorResponse = internaltypes.ErrorResponse

// JobResponse is the caller view of a job (public alias).
type JobResponse = internaltypes.JobResponse

// SubmitResponse is returned when a job was accepted (public alias).
type SubmitResponse = internaltypes.SubmitResponse
