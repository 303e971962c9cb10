// Package handlers provides HTTP request handling
package handlers

import (
	"context"
	"io"
	"strconv"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/services"
	"github.com/celestiaorg/docconv/internal/types"
)

// Multipart form fields of an upload that are not conversion settings
const (
	FormFile   = "file"
	FormID     = "id"
	FormOutput = "output"
)

// JobCoordinator is what the job handlers need from the coordinator
type JobCoordinator interface {
	Submit(ctx context.Context, req services.SubmitRequest) (string, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, opts *models.ListOptions) ([]models.Job, int64, error)
	Cancel(ctx context.Context, id string) error
}

var _ JobCoordinator = &services.Coordinator{}

// JobHandlers contains all job related handlers
type JobHandlers struct {
	coordinator JobCoordinator
}

// NewJobHandlers creates job handlers backed by coordinator
func NewJobHandlers(coordinator JobCoordinator) *JobHandlers {
	return &JobHandlers{coordinator: coordinator}
}

// Submit handles a conversion submitted through RPC
func (h *JobHandlers) Submit(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[JobSubmitParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}
	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	id, err := h.coordinator.Submit(c.UserContext(), services.SubmitRequest{
		ID:       params.ID,
		FileName: params.FileName,
		Content:  params.Content,
		Settings: params.Settings,
		Output:   params.Output,
	})
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobSubmitFailed)
		return respondWithRPCError(c, status, msg, errorDetails(status, err), req.ID)
	}

	return c.Status(fiber.StatusAccepted).JSON(RPCResponse{
		Data:    types.SubmitResponse{ID: id, State: models.JobStateQueued},
		Success: true,
		ID:      req.ID,
	})
}

// Get handles retrieving a job through RPC
func (h *JobHandlers) Get(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[JobGetParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}
	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	job, err := h.coordinator.Get(c.UserContext(), params.ID)
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobGetFailed)
		return respondWithRPCError(c, status, msg, errorDetails(status, err), req.ID)
	}

	return c.JSON(RPCResponse{
		Data:    types.NewJobResponse(job),
		Success: true,
		ID:      req.ID,
	})
}

// List handles listing jobs with pagination through RPC
func (h *JobHandlers) List(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[JobListParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}
	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	resp, err := h.list(c.UserContext(), params)
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobListFailed)
		return respondWithRPCError(c, status, msg, errorDetails(status, err), req.ID)
	}

	return c.JSON(RPCResponse{
		Data:    resp,
		Success: true,
		ID:      req.ID,
	})
}

// Cancel handles cancelling a job through RPC
func (h *JobHandlers) Cancel(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[JobCancelParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}
	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	if err := h.coordinator.Cancel(c.UserContext(), params.ID); err != nil {
		status, msg := statusFor(err, ErrMsgJobCancelFailed)
		return respondWithRPCError(c, status, msg, errorDetails(status, err), req.ID)
	}

	return c.JSON(RPCResponse{
		Success: true,
		ID:      req.ID,
	})
}

func (h *JobHandlers) list(ctx context.Context, params JobListParams) (types.ListResponse[types.JobResponse], error) {
	page := 1
	if params.Page > 0 {
		page = params.Page
	}
	opts := getPaginationOptions(page, params.StateFilter())

	jobs, total, err := h.coordinator.List(ctx, opts)
	if err != nil {
		return types.ListResponse[types.JobResponse]{}, err
	}
	return types.ListResponse[types.JobResponse]{
		Rows: types.NewJobResponses(jobs),
		Pagination: types.PaginationResponse{
			Total:  int(total),
			Page:   page,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	}, nil
}

// UploadJob handles a multipart upload. Every form value other than id and output
// is a conversion setting.
func (h *JobHandlers) UploadJob(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgInvalidReqFormat, Details: err.Error()})
	}
	files := form.File[FormFile]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgFileRequired})
	}

	f, err := files[0].Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgFileReadFailed, Details: err.Error()})
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgFileReadFailed, Details: err.Error()})
	}

	req := services.SubmitRequest{
		FileName: files[0].Filename,
		Content:  content,
		Settings: map[string]string{},
	}
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		switch key {
		case FormID:
			req.ID = values[0]
		case FormOutput:
			req.Output = values[0]
		default:
			req.Settings[key] = values[0]
		}
	}

	id, err := h.coordinator.Submit(c.UserContext(), req)
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobSubmitFailed)
		return c.Status(status).JSON(types.ErrorResponse{Error: msg, Details: errorDetails(status, err)})
	}
	return c.Status(fiber.StatusAccepted).JSON(types.SubmitResponse{ID: id, State: models.JobStateQueued})
}

// GetJob returns a job by the id in the path
func (h *JobHandlers) GetJob(c *fiber.Ctx) error {
	job, err := h.coordinator.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobGetFailed)
		return c.Status(status).JSON(types.ErrorResponse{Error: msg, Details: errorDetails(status, err)})
	}
	return c.JSON(types.NewJobResponse(job))
}

// ListJobs returns a page of jobs; page and state come from the query string
func (h *JobHandlers) ListJobs(c *fiber.Ctx) error {
	params := JobListParams{State: c.Query("state")}
	if p := c.Query("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgNegativePagination})
		}
		params.Page = page
	}
	if err := params.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: ErrMsgInvalidParams, Details: err.Error()})
	}

	resp, err := h.list(c.UserContext(), params)
	if err != nil {
		status, msg := statusFor(err, ErrMsgJobListFailed)
		return c.Status(status).JSON(types.ErrorResponse{Error: msg, Details: errorDetails(status, err)})
	}
	return c.JSON(resp)
}

// CancelJob cancels the job with the id in the path
func (h *JobHandlers) CancelJob(c *fiber.Ctx) error {
	if err := h.coordinator.Cancel(c.UserContext(), c.Params("id")); err != nil {
		status, msg := statusFor(err, ErrMsgJobCancelFailed)
		return c.Status(status).JSON(types.ErrorResponse{Error: msg, Details: errorDetails(status, err)})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
