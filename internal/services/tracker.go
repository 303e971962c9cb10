package services

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/events"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/progress"
)

// tracker is the progress.Channel bound to a running job
type tracker struct {
	c        *Coordinator
	run      *jobRun
	deadline time.Time
	aborted  atomic.Bool

	// mu orders progress writes so events leave in the order they were stored
	mu        sync.Mutex
	pagesDone int
}

var _ progress.Channel = &tracker{}

func newTracker(c *Coordinator, run *jobRun) *tracker {
	return &tracker{
		c:        c,
		run:      run,
		deadline: time.Now().Add(c.opts.MaxDuration),
	}
}

// ReportProgress records the pages converted so far. Reports that do not move
// past the last recorded count are dropped.
func (t *tracker) ReportProgress(ctx context.Context, unitsCompleted int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if unitsCompleted <= t.pagesDone {
		return nil
	}
	if err := t.c.store.SetCustomValue(ctx, t.run.id, models.FieldPagesConverted, strconv.Itoa(unitsCompleted)); err != nil {
		return err
	}
	t.pagesDone = unitsCompleted
	t.c.publisher.Publish(events.Event{
		Type:           events.EventJobProgress,
		JobID:          t.run.id,
		PagesConverted: unitsCompleted,
	})
	return nil
}

// ShouldAbort is true once the job was cancelled, ran out of time or already failed.
// The error is recorded before true is returned.
func (t *tracker) ShouldAbort(ctx context.Context) (bool, error) {
	codes := t.c.opts.ErrorCodes
	switch {
	case t.run.isCancelled():
		t.abort(ctx, newJobError(codes.Cancelled, nil))
		return true, nil
	case time.Now().After(t.deadline):
		t.abort(ctx, newJobError(codes.DurationExceeded, nil, t.c.opts.MaxDuration.Milliseconds()))
		return true, nil
	}

	state, err := t.c.store.GetState(ctx, t.run.id)
	if err != nil {
		return false, err
	}
	if state == models.JobStateError {
		t.aborted.Store(true)
		return true, nil
	}
	return false, nil
}

func (t *tracker) abort(ctx context.Context, jobErr *JobError) {
	if t.aborted.Swap(true) {
		return
	}
	logger.WithJob(t.run.id).Infof("Aborting conversion: %s", jobErr.Message)
	t.c.recordError(ctx, t.run.id, jobErr)
}

func (t *tracker) wasAborted() bool {
	return t.aborted.Load()
}
