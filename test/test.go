package test

import (
	"time"
)

// Version represents the current version of the test package.
const Version = "0.2.0"

// Option represents a configuration option for the test suite.
type Option func(*Suite)

// WithConverter replaces the default converter script body.
func WithConverter(script string) Option {
	return func(s *Suite) {
		s.converter = script
	}
}

// WithMaxConcurrent sets how many jobs convert at the same time.
func WithMaxConcurrent(n int) Option {
	return func(s *Suite) {
		s.opts.MaxConcurrent = n
	}
}

// WithMaxQueued bounds how many jobs may wait for a slot.
func WithMaxQueued(n int) Option {
	return func(s *Suite) {
		s.opts.MaxQueued = n
	}
}

// WithMaxDuration sets the conversion time limit.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Suite) {
		s.opts.MaxDuration = d
	}
}

// WithUploadDir enables remote output backed by a directory uploader.
func WithUploadDir() Option {
	return func(s *Suite) {
		s.uploadDir = true
	}
}

// WithCleanupFunc adds a cleanup function to be called when the suite is
// cleaned up.
func WithCleanupFunc(cleanup func()) Option {
	return func(s *Suite) {
		oldCleanup := s.cleanup
		s.cleanup = func() {
			if cleanup != nil {
				cleanup()
			}
			if oldCleanup != nil {
				oldCleanup()
			}
		}
	}
}
