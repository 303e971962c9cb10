package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/docconv/internal/constants"
	"github.com/celestiaorg/docconv/internal/settings"
	"github.com/celestiaorg/docconv/internal/worker"
	"github.com/celestiaorg/docconv/pkg/api/v1/client"
	"github.com/celestiaorg/docconv/pkg/api/v1/handlers"
	"github.com/celestiaorg/docconv/pkg/models"
	"github.com/celestiaorg/docconv/pkg/types"
)

// fakeClient records calls and returns canned responses
type fakeClient struct {
	client.Client

	jobs       map[string]types.JobResponse
	list       types.ListResponse[types.JobResponse]
	listParams handlers.JobListParams
	uploaded   map[string]string
	fileName   string
	content    []byte
	cancelled  []string
	cancelErr  error
}

func (f *fakeClient) GetJob(_ context.Context, id string) (types.JobResponse, error) {
	job, ok := f.jobs[id]
	if !ok {
		return types.JobResponse{}, errors.New("Job not found")
	}
	return job, nil
}

func (f *fakeClient) GetJobs(_ context.Context, params handlers.JobListParams) (types.ListResponse[types.JobResponse], error) {
	f.listParams = params
	return f.list, nil
}

func (f *fakeClient) UploadJob(_ context.Context, fileName string, content []byte, fields map[string]string) (types.SubmitResponse, error) {
	f.fileName = fileName
	f.content = content
	f.uploaded = fields
	id := fields[handlers.FormID]
	if id == "" {
		id = "generated"
	}
	return types.SubmitResponse{ID: id, State: models.JobStateQueued}, nil
}

func (f *fakeClient) CancelJob(_ context.Context, params handlers.JobCancelParams) error {
	f.cancelled = append(f.cancelled, params.ID)
	return f.cancelErr
}

// execute runs the CLI with fake wired in as the API client
func execute(t *testing.T, fake *fakeClient, args ...string) (string, error) {
	t.Helper()
	original := newClient
	t.Cleanup(func() { newClient = original })
	newClient = func(*client.Options) (client.Client, error) {
		return fake, nil
	}

	out := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseSettings(t *testing.T) {
	got, err := parseSettings([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, got)

	_, err = parseSettings([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseSettings([]string{"=1"})
	assert.Error(t, err)
}

func TestSubmitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0o600))

	fake := &fakeClient{}
	out, err := execute(t, fake, "jobs", "submit", path,
		"--id", "job-7",
		"--output", "remote",
		"--password", "pw",
		"--setting", settings.KeyViewMode+"=content",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted job job-7")

	assert.Equal(t, "report.docx", fake.fileName)
	assert.Equal(t, []byte("doc"), fake.content)
	assert.Equal(t, map[string]string{
		handlers.FormID:      "job-7",
		handlers.FormOutput:  "remote",
		settings.KeyPassword: "pw",
		settings.KeyViewMode: "content",
	}, fake.uploaded)
}

func TestSubmitCommandErrors(t *testing.T) {
	_, err := execute(t, &fakeClient{}, "jobs", "submit", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorContains(t, err, "error reading file")

	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
	_, err = execute(t, &fakeClient{}, "jobs", "submit", path, "--setting", "broken")
	assert.ErrorContains(t, err, "expected key=value")

	_, err = execute(t, &fakeClient{}, "jobs", "submit")
	assert.Error(t, err)
}

func TestSubmitAndWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	fake := &fakeClient{jobs: map[string]types.JobResponse{
		"generated": {ID: "generated", State: models.JobStateProcessed, CustomFields: map[string]string{models.FieldPageCount: "4"}},
	}}
	out, err := execute(t, fake, "jobs", "submit", path, "--wait", "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted job generated")
	assert.Contains(t, out, models.FieldPageCount)
}

func TestGetCommand(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeClient{jobs: map[string]types.JobResponse{
		"abc": {
			ID:           "abc",
			State:        models.JobStateError,
			ErrorCode:    1230,
			ErrorMessage: "Conversion exceeded max duration of 1000ms",
			Settings:     map[string]string{settings.KeyPassword: "******"},
			CreatedAt:    created,
		},
	}}

	out, err := execute(t, fake, "jobs", "get", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "[1230] Conversion exceeded max duration of 1000ms")
	assert.Contains(t, out, "2024-03-01 10:00:00")
	assert.Contains(t, out, "******")

	_, err = execute(t, fake, "jobs", "get", "missing")
	assert.ErrorContains(t, err, "error fetching job")
}

func TestListCommand(t *testing.T) {
	fake := &fakeClient{list: types.ListResponse[types.JobResponse]{
		Rows: []types.JobResponse{
			{ID: "a", State: models.JobStateProcessing, CustomFields: map[string]string{models.FieldPageCount: "3", models.FieldPagesConverted: "2"}},
			{ID: "b", State: models.JobStateQueued},
		},
		Pagination: types.PaginationResponse{Total: 12, Page: 2},
	}}

	out, err := execute(t, fake, "jobs", "list", "--page", "2", "--state", "processing")
	require.NoError(t, err)
	assert.Equal(t, handlers.JobListParams{Page: 2, State: "processing"}, fake.listParams)
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "Page 2, 2 of 12 jobs")

	_, err = execute(t, fake, "jobs", "list", "--state", "done")
	assert.ErrorContains(t, err, "invalid job state")
}

func TestListCommandEmpty(t *testing.T) {
	out, err := execute(t, &fakeClient{}, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found.")
}

func TestCancelCommand(t *testing.T) {
	fake := &fakeClient{}
	out, err := execute(t, fake, "jobs", "cancel", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, fake.cancelled)
	assert.Contains(t, out, "Cancelled job abc")

	fake.cancelErr = errors.New("Job already finished")
	_, err = execute(t, fake, "jobs", "cancel", "abc")
	assert.ErrorContains(t, err, "Job already finished")
}

func TestWaitCommandReportsFailure(t *testing.T) {
	fake := &fakeClient{jobs: map[string]types.JobResponse{
		"x": {ID: "x", State: models.JobStateError, ErrorCode: 1200, ErrorMessage: "Invalid document"},
	}}
	_, err := execute(t, fake, "jobs", "wait", "x", "--interval", "10ms")
	assert.EqualError(t, err, "job x failed: [1200] Invalid document")
}

func TestServerAddressFromEnv(t *testing.T) {
	t.Setenv(constants.EnvServerAddress, "http://converter:9000")

	var got string
	original := newClient
	t.Cleanup(func() { newClient = original })
	newClient = func(opts *client.Options) (client.Client, error) {
		got = opts.BaseURL
		return &fakeClient{}, nil
	}

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"jobs", "list"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "http://converter:9000", got)

	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"jobs", "list", "-s", "http://flag:1"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "http://flag:1", got)
}

func TestWorkerCommand(t *testing.T) {
	t.Setenv(worker.PasswordEnv, "secret")

	var got worker.Options
	original := runWorker
	t.Cleanup(func() { runWorker = original })
	runWorker = func(_ context.Context, opts worker.Options) error {
		got = opts
		return nil
	}

	_, err := execute(t, &fakeClient{}, "worker",
		"--job-id", "job-1",
		"--input", "/in/a.pdf",
		"--output", "/out/job-1",
		"--progress-url", "http://127.0.0.1:1099",
		"--poll-interval", "250ms",
		"--setting", "b=2",
		"--", "buildvu", "--fast",
	)
	require.NoError(t, err)
	assert.Equal(t, worker.Options{
		JobID:        "job-1",
		InputPath:    "/in/a.pdf",
		OutputDir:    "/out/job-1",
		ProgressURL:  "http://127.0.0.1:1099",
		PollInterval: 250 * time.Millisecond,
		Settings:     map[string]string{"b": "2", settings.KeyPassword: "secret"},
		Command:      []string{"buildvu", "--fast"},
	}, got)
}

func TestWorkerCommandRequiresConverter(t *testing.T) {
	_, err := execute(t, &fakeClient{}, "worker", "--job-id", "x")
	assert.Error(t, err)
}
