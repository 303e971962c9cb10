package test

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/celestiaorg/docconv/internal/app"
	"github.com/celestiaorg/docconv/internal/events"
	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/finalize"
	"github.com/celestiaorg/docconv/internal/pdfmeta/pdftest"
	"github.com/celestiaorg/docconv/internal/preconvert"
	"github.com/celestiaorg/docconv/internal/services"
	"github.com/celestiaorg/docconv/internal/worker"
	"github.com/celestiaorg/docconv/pkg/api/v1/client"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// FixturePages is the page count of the PDF the preconversion tool produces
const FixturePages = 3

// SetupCoordinator wires a coordinator over the suite store with real process
// execution and the suite's converter script.
func SetupCoordinator(suite *Suite) {
	fixture := filepath.Join(suite.Dir, "fixture.pdf")
	suite.Require().NoError(os.WriteFile(fixture, pdftest.Minimal(FixturePages), 0o600))
	tool := suite.writeScript("soffice.sh", fmt.Sprintf(preconversionTool, fixture))
	converter := suite.writeScript("converter.sh", suite.converter)

	var uploader finalize.Uploader
	if suite.uploadDir {
		suite.UploadDir = filepath.Join(suite.Dir, "durable")
		uploader = finalize.NewDirUploader(suite.UploadDir, "https://cdn.example.com/docs")
	}

	suite.opts.ConverterCommand = []string{"sh", converter}
	runner := executor.New()
	suite.Bus = events.NewBus()
	suite.Bus.Start(suite.ctx)

	suite.Coordinator = services.NewCoordinator(services.Dependencies{
		Store:        suite.JobRepo,
		Preconverter: preconvert.New(runner, tool, 10*time.Second, filepath.Join(suite.Dir, "profiles")),
		Engine: worker.NewCommandEngine(runner, suite.opts.ConverterCommand,
			worker.WithPollInterval(suite.opts.AbortPollInterval),
		),
		Runner:    runner,
		Finalizer: finalize.New(suite.opts.OutputPath, "http://docconv.test", uploader),
		Publisher: suite.Bus,
	}, suite.opts)

	oldCleanup := suite.cleanup
	suite.cleanup = func() {
		suite.Coordinator.Close()
		if oldCleanup != nil {
			oldCleanup()
		}
	}
}

// SetupServer configures the test suite with a real API server
func SetupServer(suite *Suite) {
	suite.App = app.NewAPI(suite.Coordinator, suite.opts.OutputPath)

	// Create test server using adaptor to convert Fiber app to http.Handler
	suite.Server = httptest.NewServer(adaptor.FiberApp(suite.App))

	// Create API client with test configuration
	client, err := client.NewClient(&client.Options{
		BaseURL: suite.Server.URL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = client

	// Update cleanup to close server
	originalCleanup := suite.cleanup
	suite.cleanup = func() {
		if suite.Server != nil {
			suite.Server.Close()
		}
		if originalCleanup != nil {
			originalCleanup()
		}
	}
}
