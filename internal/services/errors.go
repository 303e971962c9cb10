package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/celestiaorg/docconv/config"
)

var (
	// ErrQueueFull is returned by Submit when too many jobs are waiting
	ErrQueueFull = errors.New("conversion queue is full")
	// ErrInvalidSettings is returned by Submit for settings outside the vocabulary
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrUnsupportedFile is returned by Submit for file types that cannot be converted
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrInvalidJobID is returned by Submit for caller ids that are not safe to use
	ErrInvalidJobID = errors.New("invalid job id")
	// ErrShuttingDown is returned by Submit once Close was called
	ErrShuttingDown = errors.New("coordinator is shutting down")
)

// JobError is a failure reported to callers with a numeric code
type JobError struct {
	Code    int
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func newJobError(code config.ErrorCode, err error, args ...interface{}) *JobError {
	return &JobError{Code: code.Code, Message: code.Format(args...), Err: err}
}

var absPathPattern = regexp.MustCompile(`(?:[A-Za-z]:\\|/)[^\s:"')]+`)

// scrubPaths replaces absolute file paths in msg with their last element
func scrubPaths(msg string) string {
	var b strings.Builder
	last := 0
	for _, loc := range absPathPattern.FindAllStringIndex(msg, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && !strings.ContainsRune(" \t\n\"'(=", rune(msg[start-1])) {
			continue
		}
		path := strings.TrimRight(msg[start:end], `/\`)
		if i := strings.LastIndexAny(path, `/\`); i >= 0 {
			path = path[i+1:]
		}
		b.WriteString(msg[last:start])
		b.WriteString(path)
		last = end
	}
	b.WriteString(msg[last:])
	return b.String()
}
