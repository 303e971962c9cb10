package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	fiber "github.com/gofiber/fiber/v2"
)

// DefaultTimeout bounds a single progress call
const DefaultTimeout = 10 * time.Second

// Client is a Channel backed by a remote Server
type Client struct {
	url     string
	jobID   string
	timeout time.Duration
}

var _ Channel = &Client{}

// NewClient creates a client for jobID. baseURL is the server root, e.g. http://127.0.0.1:1099.
func NewClient(baseURL, jobID string) *Client {
	return &Client{
		url:     strings.TrimRight(baseURL, "/") + RPCPath,
		jobID:   jobID,
		timeout: DefaultTimeout,
	}
}

// ReportProgress implements Channel
func (c *Client) ReportProgress(ctx context.Context, unitsCompleted int) error {
	_, err := c.call(ctx, MethodReport, unitsCompleted)
	return err
}

// ShouldAbort implements Channel
func (c *Client) ShouldAbort(ctx context.Context) (bool, error) {
	res, err := c.call(ctx, MethodShouldAbort, 0)
	if err != nil {
		return false, err
	}
	return res.Abort, nil
}

func (c *Client) call(ctx context.Context, method string, units int) (Result, error) {
	agent := fiber.Post(c.url)
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	agent.JSON(Request{Method: method, Params: Params{JobID: c.jobID, Units: units}})

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("error sending progress request: %w", errs[0])
	}
	if statusCode == fiber.StatusNotFound {
		return Result{}, ErrNotBound
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal progress response (status %d): %w", statusCode, err)
	}
	if resp.Error != nil {
		return Result{}, fmt.Errorf("progress error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}
	if !resp.Success || resp.Data == nil {
		return Result{}, fmt.Errorf("progress call failed with status %d", statusCode)
	}
	return *resp.Data, nil
}
