package test

import (
	"archive/zip"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/db/repos"
	"github.com/celestiaorg/docconv/internal/events"
	"github.com/celestiaorg/docconv/internal/services"
	"github.com/celestiaorg/docconv/pkg/api/v1/client"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - File-based SQLite job store
//   - Real coordinator running a shell converter
//   - Real API server
//   - Real API client
type Suite struct {
	t *testing.T // The testing.T instance for this suite

	// Server components
	App    *fiber.App
	Server *httptest.Server

	// Client components
	APIClient client.Client

	// Database components
	DB      *gorm.DB
	JobRepo *repos.JobRepository

	// Conversion components
	Coordinator *services.Coordinator
	Bus         *events.Bus
	Dir         string
	UploadDir   string

	converter string
	uploadDir bool
	opts      services.Options

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	// Cleanup function
	cleanup func()
}

// SetS sets the suite instance for this suite
func (s *Suite) SetS(_ suite.TestingSuite) {
	// This method is required by suite.TestingSuite but we don't need to do anything here
}

// SetT sets the testing.T instance for this suite
func (s *Suite) SetT(t *testing.T) {
	s.t = t
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// NewSuite creates a new test suite with the given options.
// The suite must be cleaned up after use by calling Cleanup.
func NewSuite(t *testing.T, options ...Option) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	dir := t.TempDir()

	s := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
		Dir:        dir,
		converter:  DefaultConverter,
		opts: services.Options{
			InputPath:         filepath.Join(dir, "input"),
			OutputPath:        filepath.Join(dir, "output"),
			DefaultOutput:     config.OutputLocal,
			Mode:              config.ModeInProcess,
			MaxDuration:       10 * time.Second,
			AbortGrace:        time.Second,
			AbortPollInterval: 50 * time.Millisecond,
			MaxConcurrent:     2,
			ErrorCodes:        config.DefaultErrorCodes(),
		},
	}

	s.cleanup = func() {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
	}

	for _, opt := range options {
		opt(s)
	}

	SetupTestDB(s)
	SetupCoordinator(s)
	SetupServer(s)

	return s
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// WaitForState polls the store until the job reaches state
func (s *Suite) WaitForState(id string, state models.JobState) *models.Job {
	s.t.Helper()
	var job *models.Job
	err := s.Retry(func() error {
		var err error
		job, err = s.JobRepo.Get(s.ctx, id)
		if err != nil {
			return err
		}
		if job.State != state {
			return fmt.Errorf("job %s is %s", id, job.State)
		}
		return nil
	}, 300, 50*time.Millisecond)
	s.Require().NoError(err)
	return job
}

// ArchiveEntries lists the files in the archive produced for a job
func (s *Suite) ArchiveEntries(id string) []string {
	s.t.Helper()
	zr, err := zip.OpenReader(filepath.Join(s.opts.OutputPath, id+".zip"))
	s.Require().NoError(err)
	defer func() { _ = zr.Close() }()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// writeScript writes an executable shell script into the suite directory
func (s *Suite) writeScript(name, body string) string {
	path := filepath.Join(s.Dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o755))
	return path
}
