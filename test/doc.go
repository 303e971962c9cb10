// Package test provides infrastructure and utilities for integration testing in docconv.
//
// The test package wires a complete conversion service the way the server does,
// replacing only the external converter with a shell script. It can be used both
// within docconv and by external packages that want to test their integration
// with the docconv API.
//
// The package provides:
//
//   - Suite: a file-based SQLite job store, a real coordinator with the command
//     engine, a real API server behind httptest and a real API client
//
//   - Converters: shell scripts that stand in for the conversion engine and
//     report progress the way it does
//
//   - Helpers: polling for job states and reading produced archives
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    resp, err := suite.APIClient.SubmitJob(suite.Context(), params)
//	    job := suite.WaitForState(resp.ID, models.JobStateProcessed)
//	}
package test
