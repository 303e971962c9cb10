// Package handlers provides HTTP request handling
package handlers

// RPC method constants for standardized method naming
const (
	// Job methods
	JobSubmit = "job.submit"
	JobGet    = "job.get"
	JobList   = "job.list"
	JobCancel = "job.cancel"
)

// IsJobMethod checks if the given method is a job operation
func IsJobMethod(method string) bool {
	switch method {
	case JobSubmit, JobGet, JobList, JobCancel:
		return true
	default:
		return false
	}
}
