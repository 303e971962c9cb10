package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/services"
)

type stubCoordinator struct {
	submitErr error
	getErr    error
	cancelErr error
	listOpts  *models.ListOptions
	submitted services.SubmitRequest
}

func (s *stubCoordinator) Submit(_ context.Context, req services.SubmitRequest) (string, error) {
	s.submitted = req
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "job-1", nil
}

func (s *stubCoordinator) Get(_ context.Context, id string) (*models.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &models.Job{ID: id, State: models.JobStateProcessing}, nil
}

func (s *stubCoordinator) List(_ context.Context, opts *models.ListOptions) ([]models.Job, int64, error) {
	s.listOpts = opts
	return []models.Job{{ID: "a"}, {ID: "b"}}, 7, nil
}

func (s *stubCoordinator) Cancel(context.Context, string) error {
	return s.cancelErr
}

func newApp(coord JobCoordinator) *fiber.App {
	jobs := NewJobHandlers(coord)
	rpc := &RPCHandler{JobHandlers: jobs}
	app := fiber.New()
	app.Post("/rpc", rpc.HandleRPC)
	app.Get("/jobs", jobs.ListJobs)
	app.Get("/jobs/:id", jobs.GetJob)
	app.Delete("/jobs/:id", jobs.CancelJob)
	return app
}

func callRPC(t *testing.T, app *fiber.App, body interface{}) (int, RPCResponse) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out RPCResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHandleRPCRouting(t *testing.T) {
	app := newApp(&stubCoordinator{})

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{"missing method", RPCRequest{ID: "1"}, fiber.StatusBadRequest, ErrMsgMethodRequired},
		{"unknown method", RPCRequest{Method: "project.create"}, fiber.StatusBadRequest, ErrMsgUnknownMethod},
		{"submit without file", RPCRequest{Method: JobSubmit, Params: JobSubmitParams{}}, fiber.StatusBadRequest, "file name is required"},
		{"submit without content", RPCRequest{Method: JobSubmit, Params: JobSubmitParams{FileName: "a.pdf"}}, fiber.StatusBadRequest, "file content is required"},
		{"get without id", RPCRequest{Method: JobGet, Params: JobGetParams{}}, fiber.StatusBadRequest, "job id is required"},
		{"list with bad state", RPCRequest{Method: JobList, Params: JobListParams{State: "done"}}, fiber.StatusBadRequest, "invalid job state: done"},
		{"cancel without id", RPCRequest{Method: JobCancel, Params: JobCancelParams{}}, fiber.StatusBadRequest, "job id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := callRPC(t, app, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestHandleRPCWithoutHandlers(t *testing.T) {
	app := fiber.New()
	app.Post("/rpc", (&RPCHandler{}).HandleRPC)

	status, resp := callRPC(t, app, RPCRequest{Method: JobGet, Params: JobGetParams{ID: "x"}})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, ErrMsgNotConfigured, resp.Error.Message)
}

func TestRPCSubmit(t *testing.T) {
	coord := &stubCoordinator{}
	app := newApp(coord)

	status, resp := callRPC(t, app, RPCRequest{
		Method: JobSubmit,
		ID:     "req-7",
		Params: JobSubmitParams{FileName: "a.pdf", Content: []byte("%PDF"), Output: "remote"},
	})
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-7", resp.ID)
	assert.Equal(t, []byte("%PDF"), coord.submitted.Content)
	assert.Equal(t, "remote", coord.submitted.Output)

	coord.submitErr = fmt.Errorf("%w: too many", services.ErrQueueFull)
	status, resp = callRPC(t, app, RPCRequest{
		Method: JobSubmit,
		Params: JobSubmitParams{FileName: "a.pdf", Content: []byte("%PDF")},
	})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, ErrMsgQueueFull, resp.Error.Message)
}

func TestRPCList(t *testing.T) {
	coord := &stubCoordinator{}
	app := newApp(coord)

	status, resp := callRPC(t, app, RPCRequest{Method: JobList, Params: JobListParams{Page: 2, State: "error"}})
	require.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, coord.listOpts.State)
	assert.Equal(t, models.JobStateError, *coord.listOpts.State)
	assert.Equal(t, models.DefaultLimit, coord.listOpts.Offset)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	pagination := data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 7, pagination["total"])
	assert.EqualValues(t, 2, pagination["page"])
}

func TestRESTGetJob(t *testing.T) {
	coord := &stubCoordinator{}
	app := newApp(coord)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	coord.getErr = fmt.Errorf("%w: abc", models.ErrJobNotFound)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRESTListJobsValidation(t *testing.T) {
	app := newApp(&stubCoordinator{})

	for _, target := range []string{"/jobs?page=0", "/jobs?page=abc", "/jobs?state=bogus"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/jobs?page=1&state=queued", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRESTCancelJob(t *testing.T) {
	coord := &stubCoordinator{}
	app := newApp(coord)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/jobs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	coord.cancelErr = models.ErrJobTerminal
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/jobs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestServerErrorsHideDetails(t *testing.T) {
	coord := &stubCoordinator{
		getErr: fmt.Errorf("%w: open /var/lib/docconv/jobs.db: permission denied", models.ErrStorageUnavailable),
	}
	app := newApp(coord)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), ErrMsgServiceNotReady)
	assert.NotContains(t, string(body), "/var/lib/docconv")

	status, rpcResp := callRPC(t, app, RPCRequest{Method: JobGet, Params: JobGetParams{ID: "abc"}})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, rpcResp.Error)
	assert.Nil(t, rpcResp.Error.Data)

	// client errors keep their details
	coord.getErr = fmt.Errorf("%w: abc", models.ErrJobNotFound)
	status, rpcResp = callRPC(t, app, RPCRequest{Method: JobGet, Params: JobGetParams{ID: "abc"}})
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, "job not found: abc", rpcResp.Error.Data)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrJobNotFound, fiber.StatusNotFound},
		{models.ErrJobExists, fiber.StatusConflict},
		{models.ErrJobTerminal, fiber.StatusConflict},
		{services.ErrQueueFull, fiber.StatusTooManyRequests},
		{services.ErrShuttingDown, fiber.StatusServiceUnavailable},
		{models.ErrStorageUnavailable, fiber.StatusServiceUnavailable},
		{services.ErrInvalidSettings, fiber.StatusBadRequest},
		{services.ErrUnsupportedFile, fiber.StatusBadRequest},
		{services.ErrInvalidJobID, fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(fmt.Errorf("wrapped: %w", tt.err), "fallback")
		assert.Equal(t, tt.want, status, tt.err.Error())
	}

	_, msg := statusFor(errors.New("boom"), "fallback")
	assert.Equal(t, "fallback", msg)
}

func TestPaginationOptions(t *testing.T) {
	opts := getPaginationOptions(0, nil)
	assert.Equal(t, 0, opts.Offset)
	assert.Equal(t, models.DefaultLimit, opts.Limit)

	opts = getPaginationOptions(3, nil)
	assert.Equal(t, 2*models.DefaultLimit, opts.Offset)
}
