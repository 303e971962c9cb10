package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/events"
	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/finalize"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/pdfmeta"
	"github.com/celestiaorg/docconv/internal/preconvert"
	"github.com/celestiaorg/docconv/internal/progress"
	"github.com/celestiaorg/docconv/internal/settings"
	"github.com/celestiaorg/docconv/internal/worker"
)

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Preconverter turns a non-PDF input into a PDF
type Preconverter interface {
	Convert(ctx context.Context, src, jobID string) (string, error)
}

// Finalizer packages the output of a converted job
type Finalizer interface {
	Finalize(ctx context.Context, req finalize.Request) (finalize.Result, error)
}

// Options configure the coordinator
type Options struct {
	InputPath     string
	OutputPath    string
	DefaultOutput string
	Mode          string
	// WorkerCommand starts an isolated worker; the converter command is appended after "--"
	WorkerCommand     []string
	ConverterCommand  []string
	ProgressURL       string
	MaxDuration       time.Duration
	AbortGrace        time.Duration
	AbortPollInterval time.Duration
	MemoryLimitMB     uint64
	MaxConcurrent     int
	// MaxQueued bounds the jobs waiting for a slot; 0 means unbounded
	MaxQueued  int
	ErrorCodes config.ErrorCodes
}

// OptionsFromConfig derives coordinator options from the service configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InputPath:         cfg.Storage.InputPath,
		OutputPath:        cfg.Storage.OutputPath,
		DefaultOutput:     cfg.Storage.DefaultOutput,
		Mode:              cfg.Conversion.Mode,
		WorkerCommand:     cfg.Conversion.WorkerCommand,
		ConverterCommand:  cfg.Conversion.ConverterCommand,
		ProgressURL:       "http://" + cfg.Progress.Address,
		MaxDuration:       cfg.Conversion.MaxDuration,
		AbortGrace:        cfg.Conversion.AbortGrace,
		AbortPollInterval: cfg.Conversion.AbortPollInterval,
		MemoryLimitMB:     cfg.Conversion.MemoryLimitMB,
		MaxConcurrent:     cfg.Conversion.MaxConcurrent,
		MaxQueued:         cfg.Conversion.MaxQueued,
		ErrorCodes:        cfg.ErrorCodes,
	}
}

// Dependencies are the collaborators of a coordinator
type Dependencies struct {
	Store        JobStore
	Registry     *progress.Registry
	Preconverter Preconverter
	// Engine converts in-process; Runner starts isolated workers
	Engine    worker.Engine
	Runner    worker.Runner
	Finalizer Finalizer
	Publisher events.Publisher
}

// SubmitRequest is a new conversion
type SubmitRequest struct {
	// ID is optional; a random id is generated when empty
	ID       string
	FileName string
	Content  []byte
	Settings map[string]string
	// Output is local or remote; empty uses the configured default
	Output string
}

type jobRun struct {
	id     string
	src    string
	output string

	ctx       context.Context
	cancelFn  context.CancelFunc
	cancelled atomic.Bool
}

func (r *jobRun) isCancelled() bool {
	return r.cancelled.Load()
}

// Coordinator owns the lifecycle of every conversion job
type Coordinator struct {
	store        JobStore
	registry     *progress.Registry
	preconverter Preconverter
	engine       worker.Engine
	runner       worker.Runner
	finalizer    Finalizer
	publisher    events.Publisher
	opts         Options

	sem     *semaphore.Weighted
	mu      sync.Mutex
	waiting int
	runs    map[string]*jobRun
	closing bool
	wg      sync.WaitGroup

	baseCtx context.Context
	stop    context.CancelFunc
}

// NewCoordinator creates a coordinator
func NewCoordinator(deps Dependencies, opts Options) *Coordinator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.DefaultOutput == "" {
		opts.DefaultOutput = config.OutputLocal
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Discard{}
	}
	if deps.Registry == nil {
		deps.Registry = progress.NewRegistry()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		store:        deps.Store,
		registry:     deps.Registry,
		preconverter: deps.Preconverter,
		engine:       deps.Engine,
		runner:       deps.Runner,
		finalizer:    deps.Finalizer,
		publisher:    deps.Publisher,
		opts:         opts,
		sem:          semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		runs:         make(map[string]*jobRun),
		baseCtx:      ctx,
		stop:         stop,
	}
}

// Submit stores the input and queues its conversion. It returns the job id.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	name := path.Base(strings.ReplaceAll(req.FileName, "\\", "/"))
	if !preconvert.IsSupported(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, req.FileName)
	}
	if err := settings.Validate(req.Settings); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if !jobIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}

	output := req.Output
	if output == "" {
		output = c.opts.DefaultOutput
	}

	if err := c.reserve(); err != nil {
		return "", err
	}
	admitted := false
	defer func() {
		if !admitted {
			c.release()
		}
	}()

	if err := c.store.Create(ctx, id, req.Settings); err != nil {
		return "", err
	}

	src := filepath.Join(c.opts.InputPath, id, name)
	if err := writeInput(src, req.Content); err != nil {
		c.recordError(ctx, id, c.internalError(err))
		return "", err
	}

	runCtx, cancel := context.WithCancel(c.baseCtx)
	run := &jobRun{
		id:       id,
		src:      src,
		output:   output,
		ctx:      runCtx,
		cancelFn: cancel,
	}

	c.mu.Lock()
	c.runs[id] = run
	c.mu.Unlock()
	admitted = true

	logger.WithJob(id).WithField("file", name).Info("Job queued")
	c.publishJob(ctx, id)

	go c.process(run)
	return id, nil
}

func writeInput(dst string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create input directory: %w", err)
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("failed to write input file: %w", err)
	}
	return nil
}

// reserve claims a queue slot and registers the job with the wait group
func (c *Coordinator) reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return ErrShuttingDown
	}
	if c.opts.MaxQueued > 0 && c.waiting >= c.opts.MaxQueued {
		return ErrQueueFull
	}
	c.waiting++
	c.wg.Add(1)
	return nil
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.waiting--
	c.mu.Unlock()
	c.wg.Done()
}

func (c *Coordinator) admitted() {
	c.mu.Lock()
	c.waiting--
	c.mu.Unlock()
}

func (c *Coordinator) process(run *jobRun) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.runs, run.id)
		c.mu.Unlock()
		run.cancelFn()
	}()

	err := c.sem.Acquire(run.ctx, 1)
	c.admitted()
	if err != nil {
		c.fail(run, err)
		return
	}
	defer c.sem.Release(1)

	if err := c.execute(run); err != nil {
		c.fail(run, err)
	}
}

// execute converts one job, turning panics into internal errors
func (c *Coordinator) execute(run *jobRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithJob(run.id).Errorf("Conversion panicked: %v\n%s", r, debug.Stack())
			err = c.internalError(fmt.Errorf("panic: %v", r))
		}
	}()
	return c.convert(run)
}

func (c *Coordinator) convert(run *jobRun) error {
	ctx := run.ctx
	codes := c.opts.ErrorCodes
	log := logger.WithJob(run.id)

	if _, err := os.Stat(run.src); err != nil {
		return fmt.Errorf("input file missing: %w", err)
	}
	if err := c.store.SetState(ctx, run.id, models.JobStateProcessing); err != nil {
		if errors.Is(err, models.ErrJobTerminal) {
			log.Debug("Job ended before processing started")
			return nil
		}
		return err
	}
	c.publishJob(ctx, run.id)
	log.Info("Job processing")

	jobSettings, err := c.store.GetSettings(ctx, run.id)
	if err != nil {
		return err
	}

	pdfPath := run.src
	if !preconvert.IsCanonical(run.src) {
		pdfPath, err = c.preconverter.Convert(ctx, run.src, run.id)
		if err != nil {
			return c.preconversionError(err)
		}
	}

	info, err := pdfmeta.Inspect(pdfPath, settings.Password(jobSettings))
	switch {
	case errors.Is(err, pdfmeta.ErrInvalidPassword):
		return newJobError(codes.InvalidPassword, err)
	case errors.Is(err, pdfmeta.ErrInvalidDocument):
		return newJobError(codes.InvalidDocument, err)
	case err != nil:
		return err
	}
	if err := c.store.SetCustomValue(ctx, run.id, models.FieldPageCount, strconv.Itoa(info.PageCount)); err != nil {
		return err
	}

	outDir := filepath.Join(c.opts.OutputPath, run.id)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	t := newTracker(c, run)
	binding, err := c.registry.Bind(run.id, t)
	if err != nil {
		return err
	}
	defer binding.Close()

	convErr := c.runConversion(ctx, run, pdfPath, outDir, jobSettings, t)
	binding.Close()

	if t.wasAborted() {
		return nil
	}
	state, err := c.store.GetState(context.WithoutCancel(ctx), run.id)
	if err != nil {
		return err
	}
	if state == models.JobStateError {
		return nil
	}
	if convErr != nil {
		return convErr
	}

	return c.finish(run, outDir, jobSettings)
}

func (c *Coordinator) preconversionError(err error) error {
	codes := c.opts.ErrorCodes
	switch {
	case errors.Is(err, preconvert.ErrTimeout):
		return newJobError(codes.PreconversionTimeout, err)
	case errors.Is(err, preconvert.ErrOutputMissing):
		return newJobError(codes.PreconversionNoOutput, err)
	default:
		return newJobError(codes.PreconversionFailed, err)
	}
}

// runConversion hands the PDF to the engine. The hard limit leaves the engine
// AbortGrace to notice a duration abort on its own.
func (c *Coordinator) runConversion(ctx context.Context, run *jobRun, pdfPath, outDir string, jobSettings map[string]string, ch progress.Channel) error {
	codes := c.opts.ErrorCodes
	task := worker.Task{
		JobID:         run.id,
		InputPath:     pdfPath,
		OutputDir:     outDir,
		Settings:      jobSettings,
		Timeout:       c.opts.MaxDuration + c.opts.AbortGrace,
		MemoryLimitMB: c.opts.MemoryLimitMB,
	}
	exceeded := func(err error) error {
		return newJobError(codes.DurationExceeded, err, c.opts.MaxDuration.Milliseconds())
	}

	if c.opts.Mode == config.ModeIsolated {
		out := c.runner.Run(ctx, executor.Command{
			Args:          c.workerArgs(task),
			Env:           worker.Env(task),
			JobID:         run.id,
			Label:         "worker",
			Timeout:       task.Timeout,
			MemoryLimitMB: task.MemoryLimitMB,
		})
		switch out.Result {
		case executor.ResultSuccess:
			return nil
		case executor.ResultTimeout:
			return exceeded(out.Err)
		default:
			return newJobError(codes.ConversionFailed, out.Err)
		}
	}

	err := c.engine.Convert(ctx, task, ch)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, worker.ErrTimeout):
		return exceeded(err)
	default:
		return newJobError(codes.ConversionFailed, err)
	}
}

// workerArgs builds the command line of an isolated worker
func (c *Coordinator) workerArgs(task worker.Task) []string {
	args := append([]string{}, c.opts.WorkerCommand...)
	args = append(args,
		"--job-id", task.JobID,
		"--input", task.InputPath,
		"--output", task.OutputDir,
		"--progress-url", c.opts.ProgressURL,
	)
	if c.opts.AbortPollInterval > 0 {
		args = append(args, "--poll-interval", c.opts.AbortPollInterval.String())
	}

	keys := make([]string, 0, len(task.Settings))
	for k := range task.Settings {
		if k != settings.KeyPassword {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--setting", k+"="+task.Settings[k])
	}

	args = append(args, "--")
	return append(args, c.opts.ConverterCommand...)
}

// finish packages the output and marks the job processed
func (c *Coordinator) finish(run *jobRun, outDir string, jobSettings map[string]string) error {
	codes := c.opts.ErrorCodes
	ctx := context.WithoutCancel(run.ctx)

	var upload bool
	switch run.output {
	case config.OutputLocal:
	case config.OutputRemote:
		upload = true
	default:
		return newJobError(codes.InvalidOutput, fmt.Errorf("unknown output method %q", run.output))
	}

	res, err := c.finalizer.Finalize(run.ctx, finalize.Request{
		JobID:       run.id,
		OutputDir:   outDir,
		Previewless: settings.Previewless(jobSettings),
		Upload:      upload,
	})
	switch {
	case errors.Is(err, finalize.ErrNoUploader), errors.Is(err, finalize.ErrUploadFailed):
		return newJobError(codes.UploadFailed, err)
	case err != nil:
		return newJobError(codes.FinalizationFailed, err)
	}

	values := map[string]string{
		models.FieldPreviewURL:  res.PreviewURL,
		models.FieldDownloadURL: res.DownloadURL,
		models.FieldRemoteURL:   res.RemoteURL,
	}
	for k, v := range values {
		if v == "" {
			continue
		}
		if err := c.store.SetCustomValue(ctx, run.id, k, v); err != nil {
			return err
		}
	}

	if err := c.store.SetState(ctx, run.id, models.JobStateProcessed); err != nil {
		if errors.Is(err, models.ErrJobTerminal) {
			return nil
		}
		return err
	}
	logger.WithJob(run.id).Info("Job processed")
	c.publishJob(ctx, run.id)
	return nil
}

// fail records err as the job's error. Cancellation and shutdown take precedence
// over whatever failure they caused.
func (c *Coordinator) fail(run *jobRun, err error) {
	codes := c.opts.ErrorCodes
	var jobErr *JobError

	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()

	switch {
	case run.isCancelled():
		jobErr = newJobError(codes.Cancelled, err)
	case closing && run.ctx.Err() != nil:
		jobErr = &JobError{Code: codes.Internal.Code, Message: codes.Internal.Message + ": interrupted by shutdown", Err: err}
	case errors.As(err, &jobErr):
	case errors.Is(err, models.ErrStorageUnavailable):
		jobErr = newJobError(codes.StorageUnavailable, err)
	default:
		jobErr = c.internalError(err)
	}

	logger.WithJob(run.id).WithField("error_code", jobErr.Code).Warnf("Job failed: %v", jobErr)
	c.recordError(run.ctx, run.id, jobErr)
}

func (c *Coordinator) internalError(err error) *JobError {
	internal := c.opts.ErrorCodes.Internal
	return &JobError{Code: internal.Code, Message: fmt.Sprintf("%s: %s", internal.Message, scrubPaths(err.Error())), Err: err}
}

// recordError fails the job in the store. The first recorded error wins.
func (c *Coordinator) recordError(ctx context.Context, id string, jobErr *JobError) error {
	ctx = context.WithoutCancel(ctx)
	if err := c.store.SetError(ctx, id, jobErr.Code, jobErr.Message); err != nil {
		if errors.Is(err, models.ErrJobTerminal) {
			logger.WithJob(id).Debugf("Not recording error on finished job: %v", jobErr)
		} else {
			logger.WithJob(id).Errorf("Failed to record job error: %v", err)
		}
		return err
	}
	c.publishJob(ctx, id)
	return nil
}

// publishJob announces the stored state of a job
func (c *Coordinator) publishJob(ctx context.Context, id string) {
	job, err := c.store.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		logger.WithJob(id).Warnf("Failed to load job for event: %v", err)
		return
	}
	c.publisher.Publish(events.Event{
		Type:         events.EventJobUpdated,
		JobID:        id,
		State:        job.State.String(),
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
	})
}

// Cancel fails a queued or processing job with the cancelled code and stops its work
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	run, ok := c.runs[id]
	c.mu.Unlock()

	state, err := c.store.GetState(ctx, id)
	if err != nil {
		return err
	}
	if state.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", models.ErrJobTerminal, id, state)
	}
	if !ok {
		return c.recordError(ctx, id, newJobError(c.opts.ErrorCodes.Cancelled, nil))
	}

	if !run.cancelled.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s is already cancelled", models.ErrJobTerminal, id)
	}
	err = c.recordError(ctx, id, newJobError(c.opts.ErrorCodes.Cancelled, nil))
	run.cancelFn()
	if err != nil {
		return err
	}
	logger.WithJob(id).Info("Job cancelled")
	return nil
}

// Get returns a job
func (c *Coordinator) Get(ctx context.Context, id string) (*models.Job, error) {
	return c.store.Get(ctx, id)
}

// List returns a page of jobs and the total number matching the filter
func (c *Coordinator) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, int64, error) {
	if opts == nil {
		opts = &models.ListOptions{}
	}
	jobs, err := c.store.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := c.store.Count(ctx, opts.State)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Active returns the number of jobs that are queued or running in this process
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

// Wait blocks until every submitted job has ended
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close refuses new jobs, interrupts running ones and waits for them to record their outcome
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closing = true
	c.mu.Unlock()

	logger.Info("Coordinator shutting down")
	c.stop()
	c.wg.Wait()
}

func (c *Coordinator) isTracked(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.runs[id]
	return ok
}
