// Package preconvert turns office documents into PDF with an external office suite
// before the main conversion runs.
package preconvert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/logger"
)

var (
	// ErrTimeout is returned when the tool did not finish within its time limit
	ErrTimeout = errors.New("preconversion timed out")
	// ErrToolFailed is returned when the tool could not start or exited unsuccessfully
	ErrToolFailed = errors.New("preconversion tool failed")
	// ErrOutputMissing is returned when the tool succeeded but produced no PDF
	ErrOutputMissing = errors.New("preconversion produced no output")
	// ErrProfileBusy is returned when another preconversion already owns the job's profile directory
	ErrProfileBusy = errors.New("preconversion profile already in use")
)

// SupportedExtensions lists input extensions that can be preconverted or used directly
var SupportedExtensions = []string{
	".pdf",
	".doc", ".docx", ".odt", ".rtf",
	".ppt", ".pptx", ".odp",
	".xls", ".xlsx", ".ods",
}

// IsCanonical reports whether the file can skip preconversion
func IsCanonical(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// IsSupported reports whether the extension of name is in SupportedExtensions
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Runner executes an external command
type Runner interface {
	Run(ctx context.Context, cmd executor.Command) executor.Outcome
}

// Preconverter runs the office tool with a per-job user profile
type Preconverter struct {
	runner      Runner
	toolPath    string
	timeout     time.Duration
	profileRoot string
}

// New creates a Preconverter
func New(runner Runner, toolPath string, timeout time.Duration, profileRoot string) *Preconverter {
	return &Preconverter{
		runner:      runner,
		toolPath:    toolPath,
		timeout:     timeout,
		profileRoot: profileRoot,
	}
}

// Convert converts src into a PDF placed next to it and returns the PDF path.
// The profile directory is created exclusively for the job and always removed.
func (p *Preconverter) Convert(ctx context.Context, src, jobID string) (string, error) {
	log := logger.WithJob(jobID)

	if err := os.MkdirAll(p.profileRoot, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create profile root: %v", ErrToolFailed, err)
	}
	profile := filepath.Join(p.profileRoot, jobID)
	if err := os.Mkdir(profile, 0o700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrProfileBusy, profile)
		}
		return "", fmt.Errorf("%w: failed to create profile: %v", ErrToolFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(profile); err != nil {
			log.Warnf("Failed to remove preconversion profile %s: %v", profile, err)
		}
	}()

	absProfile, err := filepath.Abs(profile)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolFailed, err)
	}

	dir := filepath.Dir(src)
	base := filepath.Base(src)
	out := p.runner.Run(ctx, executor.Command{
		Args: []string{
			p.toolPath,
			"-env:UserInstallation=file://" + filepath.ToSlash(absProfile),
			"--headless",
			"--convert-to", "pdf",
			"--outdir", dir,
			base,
		},
		Dir:     dir,
		JobID:   jobID,
		Label:   "preconvert",
		Timeout: p.timeout,
	})

	switch out.Result {
	case executor.ResultTimeout:
		return "", fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
	case executor.ResultError:
		return "", fmt.Errorf("%w: %v", ErrToolFailed, out.Err)
	}

	pdf := OutputPath(src)
	info, err := os.Stat(pdf)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: expected %s", ErrOutputMissing, filepath.Base(pdf))
	}

	log.WithField("output", pdf).Info("Preconversion finished")
	return pdf, nil
}

// OutputPath is where the tool writes the PDF for src
func OutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".pdf"
}
