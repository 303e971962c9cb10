package progress

import (
	"errors"
	"net"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/docconv/internal/logger"
)

// DefaultAddress is the loopback address the server listens on
const DefaultAddress = "127.0.0.1:1099"

// RPCPath is the single endpoint of the server
const RPCPath = "/rpc"

// RPC methods
const (
	MethodReport      = "progress.report"
	MethodShouldAbort = "progress.shouldAbort"
)

// Request is the RPC envelope sent by a Client
type Request struct {
	Method string `json:"method"`
	Params Params `json:"params"`
	ID     string `json:"id,omitempty"`
}

// Params identifies the job and carries the reported units
type Params struct {
	JobID string `json:"jobId"`
	Units int    `json:"units,omitempty"`
}

// Response is the RPC envelope returned by the Server
type Response struct {
	Data    *Result `json:"data,omitempty"`
	Error   *Error  `json:"error,omitempty"`
	ID      string  `json:"id,omitempty"`
	Success bool    `json:"success"`
}

// Result is the data of a successful call
type Result struct {
	Abort bool `json:"abort"`
}

// Error is the error of a failed call
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the registry to out-of-process workers
type Server struct {
	registry *Registry
	app      *fiber.App
}

// NewServer creates a server over registry
func NewServer(registry *Registry) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s := &Server{registry: registry, app: app}
	app.Post(RPCPath, s.handle)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	logger.Infof("Progress server listening on %s", ln.Addr())
	return s.app.Listener(ln)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handle(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request format", req.ID)
	}
	if req.Params.JobID == "" {
		return respondWithError(c, fiber.StatusBadRequest, "jobId is required", req.ID)
	}

	ch, ok := s.registry.Lookup(req.Params.JobID)
	if !ok {
		return respondWithError(c, fiber.StatusNotFound, ErrNotBound.Error(), req.ID)
	}

	ctx := c.UserContext()
	switch req.Method {
	case MethodReport:
		if req.Params.Units < 0 {
			return respondWithError(c, fiber.StatusBadRequest, "units must not be negative", req.ID)
		}
		if err := ch.ReportProgress(ctx, req.Params.Units); err != nil {
			return respondWithChannelError(c, err, req)
		}
		return c.JSON(Response{Data: &Result{}, ID: req.ID, Success: true})
	case MethodShouldAbort:
		abort, err := ch.ShouldAbort(ctx)
		if err != nil {
			return respondWithChannelError(c, err, req)
		}
		return c.JSON(Response{Data: &Result{Abort: abort}, ID: req.ID, Success: true})
	default:
		return respondWithError(c, fiber.StatusBadRequest, "Unknown method", req.ID)
	}
}

func respondWithChannelError(c *fiber.Ctx, err error, req Request) error {
	logger.WithJob(req.Params.JobID).WithField("method", req.Method).Warnf("Progress call failed: %v", err)
	if errors.Is(err, ErrNotBound) {
		return respondWithError(c, fiber.StatusNotFound, err.Error(), req.ID)
	}
	return respondWithError(c, fiber.StatusInternalServerError, "Failed to handle progress call", req.ID)
}

func respondWithError(c *fiber.Ctx, code int, message, id string) error {
	return c.Status(code).JSON(Response{
		Error:   &Error{Code: code, Message: message},
		ID:      id,
		Success: false,
	})
}
