package worker

import (
	"context"
	"errors"
	"time"

	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/progress"
)

// Options configure an isolated worker process
type Options struct {
	JobID        string
	InputPath    string
	OutputDir    string
	Settings     map[string]string
	ProgressURL  string
	Command      []string
	PollInterval time.Duration
}

// Validate checks the options needed to run
func (o Options) Validate() error {
	var errs []error
	if o.JobID == "" {
		errs = append(errs, errors.New("job id is required"))
	}
	if o.InputPath == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if o.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if o.ProgressURL == "" {
		errs = append(errs, errors.New("progress url is required"))
	}
	if len(o.Command) == 0 {
		errs = append(errs, errors.New("converter command is required"))
	}
	return errors.Join(errs...)
}

// Run converts one job inside the isolated worker process. The coordinator owns
// the time limit of this process, so the converter runs without one and stays in
// this process group.
func Run(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	logger.WithJob(opts.JobID).WithField("progress_url", opts.ProgressURL).Info("Worker started")

	engine := NewCommandEngine(executor.New(), opts.Command,
		WithPollInterval(opts.PollInterval),
		WithInheritedGroup(),
	)
	return engine.Convert(ctx, Task{
		JobID:     opts.JobID,
		InputPath: opts.InputPath,
		OutputDir: opts.OutputDir,
		Settings:  opts.Settings,
	}, progress.NewClient(opts.ProgressURL, opts.JobID))
}
