package finalize

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/docconv/config"
)

type failingUploader struct{}

func (failingUploader) Upload(context.Context, string, string) (string, error) {
	return "", errors.New("bucket gone")
}

func writeOutput(t *testing.T, base, jobID string) string {
	t.Helper()
	dir := filepath.Join(base, jobID)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "1.svg"), []byte("<svg/>"), 0o644))
	return dir
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestFinalizeLocal(t *testing.T) {
	base := t.TempDir()
	dir := writeOutput(t, base, "job-1")
	f := New(base, "http://docs.example.com/", nil)

	res, err := f.Finalize(context.Background(), Request{JobID: "job-1", OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "job-1.zip"), res.ArchivePath)
	assert.Equal(t, "http://docs.example.com/output/job-1.zip", res.DownloadURL)
	assert.Equal(t, "http://docs.example.com/output/job-1/index.html", res.PreviewURL)
	assert.Empty(t, res.RemoteURL)
	assert.Equal(t, []string{"assets/", "assets/1.svg", "index.html"}, zipNames(t, res.ArchivePath))
	// the output directory stays in place for previews
	assert.DirExists(t, dir)
}

func TestFinalizePreviewless(t *testing.T) {
	base := t.TempDir()
	dir := writeOutput(t, base, "job-2")

	res, err := New(base, "http://host", nil).Finalize(context.Background(), Request{JobID: "job-2", OutputDir: dir, Previewless: true})
	require.NoError(t, err)
	assert.Empty(t, res.PreviewURL)
	assert.Equal(t, "http://host/output/job-2.zip", res.DownloadURL)
}

func TestFinalizeErrors(t *testing.T) {
	base := t.TempDir()
	dir := writeOutput(t, base, "job-3")

	_, err := New(base, "http://host", nil).Finalize(context.Background(), Request{JobID: "job-3", OutputDir: filepath.Join(base, "missing")})
	assert.ErrorIs(t, err, ErrOutputMissing)

	_, err = New(base, "http://host", nil).Finalize(context.Background(), Request{JobID: "job-3", OutputDir: dir, Upload: true})
	assert.ErrorIs(t, err, ErrNoUploader)

	_, err = New(base, "http://host", failingUploader{}).Finalize(context.Background(), Request{JobID: "job-3", OutputDir: dir, Upload: true})
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestFinalizeDirUpload(t *testing.T) {
	base := t.TempDir()
	durable := filepath.Join(t.TempDir(), "durable")
	dir := writeOutput(t, base, "job-4")

	uploader, err := NewUploader(config.UploadConfig{Type: config.UploadDir, Dir: durable, BaseURL: "https://cdn.example.com/"})
	require.NoError(t, err)

	res, err := New(base, "http://host", uploader).Finalize(context.Background(), Request{JobID: "job-4", OutputDir: dir, Upload: true})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/job-4.zip", res.RemoteURL)
	assert.Equal(t, "http://host/output/job-4.zip", res.DownloadURL)

	local, err := os.ReadFile(res.ArchivePath)
	require.NoError(t, err)
	remote, err := os.ReadFile(filepath.Join(durable, "job-4.zip"))
	require.NoError(t, err)
	assert.Equal(t, local, remote)
	assert.NoFileExists(t, filepath.Join(durable, "job-4.zip.part"))
}

func TestDirUploaderWithoutBaseURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0o644))
	durable := t.TempDir()

	url, err := NewDirUploader(durable, "").Upload(context.Background(), src, "a.zip")
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(durable, "a.zip")), url)
}

func TestNewUploader(t *testing.T) {
	u, err := NewUploader(config.UploadConfig{})
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = NewUploader(config.UploadConfig{Type: "s3"})
	assert.Error(t, err)

	_, err = NewUploader(config.UploadConfig{Type: config.UploadSFTP, SFTP: config.SFTPConfig{
		Address: "127.0.0.1:22", User: "u", KnownHosts: filepath.Join(t.TempDir(), "missing"),
	}})
	assert.Error(t, err)
}

func TestZipDirOverwrites(t *testing.T) {
	base := t.TempDir()
	dir := writeOutput(t, base, "job-5")
	dst := filepath.Join(base, "job-5.zip")

	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))
	require.NoError(t, ZipDir(dir, dst))

	r, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		if f.Name != "index.html" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(data))
	}

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".archive-")
	}
}
