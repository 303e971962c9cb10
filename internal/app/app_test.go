package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/pdfmeta/pdftest"
	"github.com/celestiaorg/docconv/pkg/api/v1/handlers"
)

const converter = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
for i in 1 2; do
  echo "<p>$i</p>" > "$out/page$i.html"
  echo "page $i"
done
echo "<html></html>" > "$out/index.html"
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "converter.sh")
	require.NoError(t, os.WriteFile(script, []byte(converter), 0o755))

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "jobs.db")
	cfg.Storage.InputPath = filepath.Join(dir, "input")
	cfg.Storage.OutputPath = filepath.Join(dir, "output")
	cfg.Conversion.ConverterCommand = []string{"sh", script}
	cfg.Conversion.MaxDuration = 20 * time.Second
	cfg.Conversion.AbortPollInterval = 50 * time.Millisecond
	cfg.ResolvePaths()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestEndToEndInProcess(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Shutdown()) }()

	body, err := json.Marshal(handlers.RPCRequest{
		Method: handlers.JobSubmit,
		Params: handlers.JobSubmitParams{FileName: "report.pdf", Content: pdftest.Minimal(2), ID: "report-1"},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.API().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var job *models.Job
	require.Eventually(t, func() bool {
		job, err = a.Coordinator().Get(context.Background(), "report-1")
		return err == nil && job.State.IsTerminal()
	}, 15*time.Second, 50*time.Millisecond)
	require.Equal(t, models.JobStateProcessed, job.State, job.ErrorMessage)
	assert.Equal(t, "2", job.CustomFields[models.FieldPageCount])
	assert.Equal(t, "http://localhost:8080/output/report-1.zip", job.CustomFields[models.FieldDownloadURL])

	resp, err = a.API().Test(httptest.NewRequest(http.MethodGet, "/output/report-1/index.html", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Shutdown()) }()

	resp, err := a.API().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out["error"])
}

func TestNewIsolatedStartsProgressServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Conversion.Mode = config.ModeIsolated
	cfg.Notify.Address = "127.0.0.1:0"

	a, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.progress)
	assert.NotNil(t, a.notifySrv)
	assert.NoError(t, a.Shutdown())
}

func TestNewRejectsBadUploader(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Upload.Type = "ftp"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.NotEqual(t, gormLogLevel("debug"), gormLogLevel("info"))
	assert.Equal(t, gormLogLevel("warn"), gormLogLevel(""))
}
