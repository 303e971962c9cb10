package services

import (
	"context"
	"fmt"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/logger"
)

const recoveryBatch = 50

// RecoverInterrupted fails jobs that a previous process left queued or processing.
// Jobs running in this coordinator are left alone. It returns the number of jobs failed.
func (c *Coordinator) RecoverInterrupted(ctx context.Context) (int, error) {
	internal := c.opts.ErrorCodes.Internal
	message := internal.Message + ": interrupted by restart"

	recovered := 0
	for _, state := range []models.JobState{models.JobStateQueued, models.JobStateProcessing} {
		offset := 0
		for {
			select {
			case <-ctx.Done():
				return recovered, ctx.Err()
			default:
			}

			jobs, err := c.store.List(ctx, &models.ListOptions{Limit: recoveryBatch, Offset: offset, State: &state})
			if err != nil {
				return recovered, fmt.Errorf("failed to list %s jobs: %w", state, err)
			}
			if len(jobs) == 0 {
				break
			}

			for _, job := range jobs {
				if c.isTracked(job.ID) {
					// still in the listing on the next page
					offset++
					continue
				}
				if err := c.recordError(ctx, job.ID, &JobError{Code: internal.Code, Message: message}); err != nil {
					return recovered, err
				}
				recovered++
			}
		}
	}

	if recovered > 0 {
		logger.Infof("Recovered %d interrupted jobs", recovered)
	}
	return recovered, nil
}
