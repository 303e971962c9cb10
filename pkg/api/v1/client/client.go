// Package client provides the API client for interacting with the docconv API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/docconv/internal/types"
	"github.com/celestiaorg/docconv/pkg/api/v1/handlers"
	"github.com/celestiaorg/docconv/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Job Endpoints
	GetJob(ctx context.Context, id string) (types.JobResponse, error)
	GetJobs(ctx context.Context, params handlers.JobListParams) (types.ListResponse[types.JobResponse], error)
	UploadJob(ctx context.Context, fileName string, content []byte, fields map[string]string) (types.SubmitResponse, error)

	// Job methods
	SubmitJob(ctx context.Context, params handlers.JobSubmitParams) (types.SubmitResponse, error)
	ListJobs(ctx context.Context, params handlers.JobListParams) (types.ListResponse[types.JobResponse], error)
	CancelJob(ctx context.Context, params handlers.JobCancelParams) error
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	// Resolve the endpoint URL
	fullURL := c.baseURL + endpoint

	// Create a new agent based on the HTTP method
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Accept", "application/json")

	// Add body if provided
	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	// Execute the request
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	// Decode the response body if a target is provided
	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// executeRPC performs the actual RPC call
func (c *APIClient) executeRPC(ctx context.Context, method string, params interface{}, result interface{}) error {
	requestBody := handlers.RPCRequest{
		Method: method,
		Params: params,
	}

	agent, err := c.createAgent(ctx, http.MethodPost, routes.RPCURL(), requestBody)
	if err != nil {
		return err
	}

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending RPC request: %w", errs[0])
	}

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body), // Raw body as error message
		}
	}

	var rpcResp handlers.RPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("failed to unmarshal RPC response body: %w", err)
	}

	// Check for application-level errors
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error: %s (code: %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	if !rpcResp.Success {
		return fmt.Errorf("RPC call failed without specific error details")
	}

	// If result is nil, we don't need to unmarshal data (e.g., for notification-style calls)
	if result == nil {
		return nil
	}

	// Data arrives as a generic value; round trip it into the typed result
	dataBytes, err := json.Marshal(rpcResp.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal RPC data field: %w", err)
	}

	if err := json.Unmarshal(dataBytes, result); err != nil {
		return fmt.Errorf("failed to unmarshal RPC data into result: %w", err)
	}

	return nil
}

// Health check implementation

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, routes.HealthCheckURL(), nil, &response); err != nil {
		return map[string]string{}, err
	}
	return response, nil
}

// Job endpoints implementation

func listQuery(params handlers.JobListParams) url.Values {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.State != "" {
		q.Set("state", params.State)
	}
	return q
}

// GetJob retrieves a job by ID
func (c *APIClient) GetJob(ctx context.Context, id string) (types.JobResponse, error) {
	var response types.JobResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &response); err != nil {
		return types.JobResponse{}, err
	}
	return response, nil
}

// GetJobs lists jobs through the REST endpoint
func (c *APIClient) GetJobs(ctx context.Context, params handlers.JobListParams) (types.ListResponse[types.JobResponse], error) {
	var response types.ListResponse[types.JobResponse]
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobsURL(listQuery(params)), nil, &response); err != nil {
		return types.ListResponse[types.JobResponse]{}, err
	}
	return response, nil
}

// UploadJob submits a file as a multipart upload. fields carry the id, the output
// method and conversion settings.
func (c *APIClient) UploadJob(ctx context.Context, fileName string, content []byte, fields map[string]string) (types.SubmitResponse, error) {
	agent, err := c.createAgent(ctx, http.MethodPost, routes.SubmitJobURL(), nil)
	if err != nil {
		return types.SubmitResponse{}, err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	for k, v := range fields {
		args.Set(k, v)
	}
	agent.FileData(&fiber.FormFile{
		Fieldname: handlers.FormFile,
		Name:      fileName,
		Content:   content,
	}).MultipartForm(args)

	var response types.SubmitResponse
	if err := c.doRequest(agent, &response); err != nil {
		return types.SubmitResponse{}, err
	}
	return response, nil
}

// Job RPC methods implementation

// SubmitJob submits a conversion
func (c *APIClient) SubmitJob(ctx context.Context, params handlers.JobSubmitParams) (types.SubmitResponse, error) {
	var response types.SubmitResponse
	if err := c.executeRPC(ctx, handlers.JobSubmit, params, &response); err != nil {
		return types.SubmitResponse{}, err
	}
	return response, nil
}

// ListJobs lists jobs through RPC
func (c *APIClient) ListJobs(ctx context.Context, params handlers.JobListParams) (types.ListResponse[types.JobResponse], error) {
	var response types.ListResponse[types.JobResponse]
	if err := c.executeRPC(ctx, handlers.JobList, params, &response); err != nil {
		return types.ListResponse[types.JobResponse]{}, err
	}
	return response, nil
}

// CancelJob cancels a job
func (c *APIClient) CancelJob(ctx context.Context, params handlers.JobCancelParams) error {
	return c.executeRPC(ctx, handlers.JobCancel, params, nil)
}
