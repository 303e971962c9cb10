// Package finalize packages a finished conversion and publishes its URLs
package finalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/celestiaorg/docconv/internal/logger"
)

var (
	// ErrOutputMissing is returned when the conversion left no output directory
	ErrOutputMissing = errors.New("conversion output missing")
	// ErrNoUploader is returned when an upload is requested without durable storage configured
	ErrNoUploader = errors.New("no durable storage configured")
	// ErrUploadFailed wraps every uploader failure
	ErrUploadFailed = errors.New("upload failed")
)

// Request describes one job to finalize
type Request struct {
	JobID       string
	OutputDir   string
	Previewless bool
	Upload      bool
}

// Result carries what the caller should record on the job
type Result struct {
	ArchivePath string
	PreviewURL  string
	DownloadURL string
	RemoteURL   string
}

// Uploader copies an archive to durable storage
type Uploader interface {
	// Upload stores the file at localPath under name and returns its public URL
	Upload(ctx context.Context, localPath, name string) (string, error)
}

// Finalizer zips output directories next to them and builds their URLs
type Finalizer struct {
	outputBase    string
	publicContext string
	uploader      Uploader
}

// New creates a Finalizer. uploader may be nil.
func New(outputBase, publicContext string, uploader Uploader) *Finalizer {
	return &Finalizer{
		outputBase:    outputBase,
		publicContext: strings.TrimRight(publicContext, "/"),
		uploader:      uploader,
	}
}

// Finalize archives req.OutputDir into <outputBase>/<jobID>.zip
func (f *Finalizer) Finalize(ctx context.Context, req Request) (Result, error) {
	log := logger.WithJob(req.JobID)

	info, err := os.Stat(req.OutputDir)
	if err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrOutputMissing, filepath.Base(req.OutputDir))
	}
	if req.Upload && f.uploader == nil {
		return Result{}, ErrNoUploader
	}

	archive := filepath.Join(f.outputBase, req.JobID+".zip")
	if err := ZipDir(req.OutputDir, archive); err != nil {
		return Result{}, fmt.Errorf("failed to archive output: %w", err)
	}

	res := Result{
		ArchivePath: archive,
		DownloadURL: f.DownloadURL(req.JobID),
	}
	if !req.Previewless {
		res.PreviewURL = f.PreviewURL(req.JobID)
	}

	if req.Upload {
		url, err := f.uploader.Upload(ctx, archive, req.JobID+".zip")
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		res.RemoteURL = url
	}

	log.WithFields(map[string]interface{}{
		"archive":    archive,
		"remote_url": res.RemoteURL,
	}).Info("Output finalized")
	return res, nil
}

// PreviewURL is where the HTML viewer of a job is served
func (f *Finalizer) PreviewURL(jobID string) string {
	return f.publicContext + "/output/" + jobID + "/index.html"
}

// DownloadURL is where the archive of a job is served
func (f *Finalizer) DownloadURL(jobID string) string {
	return f.publicContext + "/output/" + jobID + ".zip"
}
