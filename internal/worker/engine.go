// Package worker drives the external conversion engine for one job
package worker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/progress"
	"github.com/celestiaorg/docconv/internal/settings"
)

var (
	// ErrTimeout is returned when the engine ran past the task timeout
	ErrTimeout = errors.New("conversion timed out")
	// ErrAborted is returned when the progress channel asked the engine to stop
	ErrAborted = errors.New("conversion aborted")
	// ErrFailed is returned when the engine exited unsuccessfully
	ErrFailed = errors.New("conversion failed")
)

// DefaultPollInterval is how often the engine asks whether to abort
const DefaultPollInterval = time.Second

// PasswordEnv carries the document password to the converter so it stays out
// of logged command lines
const PasswordEnv = "DOCCONV_PDF_PASSWORD"

// Task is one conversion
type Task struct {
	JobID     string
	InputPath string
	OutputDir string
	Settings  map[string]string
	// Timeout is the hard limit after which the engine is killed
	Timeout       time.Duration
	MemoryLimitMB uint64
}

// Engine converts a PDF into the output directory, reporting through ch
type Engine interface {
	Convert(ctx context.Context, task Task, ch progress.Channel) error
}

// Runner executes an external command
type Runner interface {
	Run(ctx context.Context, cmd executor.Command) executor.Outcome
}

// CommandEngine runs the converter as an external command
type CommandEngine struct {
	runner       Runner
	command      []string
	pollInterval time.Duration
	inheritGroup bool
}

var _ Engine = &CommandEngine{}

// EngineOption configures a CommandEngine
type EngineOption func(*CommandEngine)

// WithPollInterval sets how often ShouldAbort is polled
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *CommandEngine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithInheritedGroup keeps the converter in the caller's process group
func WithInheritedGroup() EngineOption {
	return func(e *CommandEngine) {
		e.inheritGroup = true
	}
}

// NewCommandEngine creates an engine running command
func NewCommandEngine(runner Runner, command []string, opts ...EngineOption) *CommandEngine {
	e := &CommandEngine{
		runner:       runner,
		command:      command,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var pageLine = regexp.MustCompile(`(?i)^\s*page\s+(\d+)\b`)

// Args builds the converter argument vector for task
func (e *CommandEngine) Args(task Task) []string {
	args := make([]string, 0, len(e.command)+4+2*len(task.Settings))
	args = append(args, e.command...)
	args = append(args, "--input", task.InputPath, "--output", task.OutputDir)

	keys := make([]string, 0, len(task.Settings))
	for k := range task.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == settings.KeyPassword {
			continue
		}
		args = append(args, "--setting", k+"="+task.Settings[k])
	}
	return args
}

// Env returns the environment additions for task
func Env(task Task) []string {
	if pw := settings.Password(task.Settings); pw != "" {
		return []string{PasswordEnv + "=" + pw}
	}
	return nil
}

// Convert implements Engine
func (e *CommandEngine) Convert(ctx context.Context, task Task, ch progress.Channel) error {
	if len(e.command) == 0 {
		return fmt.Errorf("%w: no converter command configured", ErrFailed)
	}
	log := logger.WithJob(task.JobID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var aborted atomic.Bool
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				abort, err := ch.ShouldAbort(runCtx)
				if errors.Is(err, progress.ErrNotBound) {
					abort = true
				} else if err != nil {
					log.Warnf("Failed to poll abort flag: %v", err)
					continue
				}
				if abort {
					log.Info("Abort requested")
					aborted.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	out := e.runner.Run(runCtx, executor.Command{
		Args:          e.Args(task),
		Dir:           task.OutputDir,
		JobID:         task.JobID,
		Label:         "convert",
		Env:           Env(task),
		Timeout:       task.Timeout,
		MemoryLimitMB: task.MemoryLimitMB,
		InheritGroup:  e.inheritGroup,
		OnOutput: func(line string) {
			m := pageLine.FindStringSubmatch(line)
			if m == nil {
				log.WithField("stream", "stdout").Debug(line)
				return
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return
			}
			if err := ch.ReportProgress(runCtx, n); err != nil {
				log.Warnf("Failed to report progress: %v", err)
			}
		},
	})
	cancel()
	<-pollDone

	switch {
	case out.Result == executor.ResultSuccess:
		return nil
	case aborted.Load():
		return ErrAborted
	case out.Result == executor.ResultTimeout:
		return fmt.Errorf("%w: %v", ErrTimeout, out.Err)
	default:
		return fmt.Errorf("%w: %v", ErrFailed, out.Err)
	}
}
