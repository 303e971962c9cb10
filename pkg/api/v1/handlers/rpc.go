// Package handlers provides HTTP request handling
package handlers

import (
	"encoding/json"

	fiber "github.com/gofiber/fiber/v2"
)

// RPCRequest defines the structure for RPC-style API requests
type RPCRequest struct {
	// Method is the operation to perform (e.g., "job.submit", "job.get")
	Method string `json:"method"`

	// Params contains the operation parameters
	Params interface{} `json:"params"`

	// ID is an optional request identifier that will be echoed back in the response
	ID string `json:"id,omitempty"`
}

// RPCResponse defines the structure for RPC-style API responses
type RPCResponse struct {
	// Data contains the operation result
	Data interface{} `json:"data,omitempty"`

	// Error contains error information if the operation failed
	Error *RPCError `json:"error,omitempty"`

	// ID echoes back the request ID if provided
	ID string `json:"id,omitempty"`

	// Success indicates if the operation was successful
	Success bool `json:"success"`
}

// RPCError defines the structure for RPC errors
type RPCError struct {
	// Code is a numeric error code
	Code int `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Data contains additional error details (optional)
	Data interface{} `json:"data,omitempty"`
}

// RPCHandler handles RPC-style API requests for jobs
type RPCHandler struct {
	JobHandlers *JobHandlers
}

// HandleRPC handles all RPC requests for various resource types
func (h *RPCHandler) HandleRPC(c *fiber.Ctx) error {
	var req RPCRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqFormat, err.Error(), req.ID)
	}

	// Check if method is provided
	if req.Method == "" {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgMethodRequired, nil, req.ID)
	}

	if IsJobMethod(req.Method) {
		return h.handleJobMethod(c, req)
	}
	return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgUnknownMethod, nil, req.ID)
}

// handleJobMethod routes job methods to their respective handlers
func (h *RPCHandler) handleJobMethod(c *fiber.Ctx, req RPCRequest) error {
	if h.JobHandlers == nil {
		return respondWithRPCError(c, fiber.StatusInternalServerError, ErrMsgNotConfigured, nil, req.ID)
	}

	switch req.Method {
	case JobSubmit:
		return h.JobHandlers.Submit(c, req)
	case JobGet:
		return h.JobHandlers.Get(c, req)
	case JobList:
		return h.JobHandlers.List(c, req)
	case JobCancel:
		return h.JobHandlers.Cancel(c, req)
	default:
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgUnknownJobMethod, nil, req.ID)
	}
}

// parseParams is a helper function to parse RPC parameters into a specific struct type
func parseParams[T any](req RPCRequest) (T, error) {
	var params T

	// Convert params to JSON
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return params, err
	}

	// Unmarshal to target type
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return params, err
	}

	return params, nil
}

// Helper to create a standardized RPC error response
func respondWithRPCError(c *fiber.Ctx, httpCode int, message string, data interface{}, id string) error {
	return c.Status(httpCode).JSON(RPCResponse{
		Error: &RPCError{
			Code:    httpCode,
			Message: message,
			Data:    data,
		},
		Success: false,
		ID:      id,
	})
}
