// Package middleware holds fiber middleware shared by the public API
package middleware

import (
	"errors"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/celestiaorg/docconv/internal/logger"
)

// quietPaths are logged at debug level only
var quietPaths = map[string]bool{
	"/health": true,
}

// Logger returns a middleware that logs HTTP requests
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Continue chain
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		})

		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("Request")
		case quietPaths[c.Path()]:
			entry.Debug("Request")
		default:
			entry.Info("Request")
		}

		return err
	}
}
