package repos

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/celestiaorg/docconv/internal/db"
	"github.com/celestiaorg/docconv/internal/db/models"
)

// JobRepository is the job store. Mutations of one job are serialized by a per-job lock;
// different jobs never block each other.
type JobRepository struct {
	db    *gorm.DB
	locks *jobLocks
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, locks: newJobLocks()}
}

// Create inserts a queued job with the given settings
func (r *JobRepository) Create(ctx context.Context, id string, settings map[string]string) error {
	unlock := r.locks.lock(id)
	defer unlock()

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return unavailable(err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", models.ErrJobExists, id)
	}

	job := &models.Job{
		ID:           id,
		State:        models.JobStateQueued,
		Settings:     models.Fields(settings).Clone(),
		CustomFields: models.Fields{},
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if db.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", models.ErrJobExists, id)
		}
		return unavailable(err)
	}
	return nil
}

// Get retrieves a job by its ID
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if job.Settings == nil {
		job.Settings = models.Fields{}
	}
	if job.CustomFields == nil {
		job.CustomFields = models.Fields{}
	}
	return &job, nil
}

// GetState returns the current state of a job
func (r *JobRepository) GetState(ctx context.Context, id string) (models.JobState, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return models.JobStateUnknown, err
	}
	return job.State, nil
}

// SetState moves a job along queued -> processing -> processed.
// Writing the current state again is a no-op. Use SetError for failures.
func (r *JobRepository) SetState(ctx context.Context, id string, state models.JobState) error {
	if state == models.JobStateError || state == models.JobStateUnknown {
		return fmt.Errorf("%w: use SetError to fail a job", models.ErrInvalidTransition)
	}

	unlock := r.locks.lock(id)
	defer unlock()

	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", models.ErrJobTerminal, id, job.State)
	}
	if !job.State.CanTransitionTo(state) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, job.State, state)
	}
	if job.State == state {
		return nil
	}

	err = r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update(models.JobStateField, state).Error
	return unavailable(err)
}

// SetError fails a job. The first error wins: later calls on a failed job are ignored.
func (r *JobRepository) SetError(ctx context.Context, id string, code int, message string) error {
	unlock := r.locks.lock(id)
	defer unlock()

	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	switch job.State {
	case models.JobStateError:
		return nil
	case models.JobStateProcessed:
		return fmt.Errorf("%w: %s is %s", models.ErrJobTerminal, id, job.State)
	}

	err = r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			models.JobStateField: models.JobStateError,
			"error_code":         code,
			"error_message":      message,
		}).Error
	return unavailable(err)
}

// SetCustomValue records a custom field. pagesConverted only moves forward;
// equal or smaller values are ignored.
func (r *JobRepository) SetCustomValue(ctx context.Context, id, key, value string) error {
	unlock := r.locks.lock(id)
	defer unlock()

	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if key == models.FieldPagesConverted {
		next, err := strconv.Atoi(value)
		if err != nil || next < 0 {
			return fmt.Errorf("%w: %s=%q", models.ErrInvalidCustomValue, key, value)
		}
		if current, ok := job.CustomFields[key]; ok {
			if prev, err := strconv.Atoi(current); err == nil && next <= prev {
				return nil
			}
		}
	}
	if job.CustomFields[key] == value {
		return nil
	}

	job.CustomFields[key] = value
	err = r.db.WithContext(ctx).Model(job).
		Select(models.JobCustomFieldsField).
		Updates(job).Error
	return unavailable(err)
}

// GetCustomValues returns a copy of the job's custom fields
func (r *JobRepository) GetCustomValues(ctx context.Context, id string) (map[string]string, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.CustomFields.Clone(), nil
}

// GetSettings returns a copy of the job's settings
func (r *JobRepository) GetSettings(ctx context.Context, id string) (map[string]string, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.Settings.Clone(), nil
}

// List returns jobs, newest first
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error) {
	if opts == nil {
		opts = &models.ListOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = models.DefaultLimit
	}

	qry := r.db.WithContext(ctx).Model(&models.Job{})
	if opts.State != nil {
		qry = qry.Where(models.JobStateField+" = ?", *opts.State)
	}

	var jobs []models.Job
	err := qry.Limit(limit).Offset(opts.Offset).
		Order(models.JobCreatedAtField + " DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, unavailable(err)
	}
	return jobs, nil
}

// Count returns the number of jobs, optionally in one state
func (r *JobRepository) Count(ctx context.Context, state *models.JobState) (int64, error) {
	qry := r.db.WithContext(ctx).Model(&models.Job{})
	if state != nil {
		qry = qry.Where(models.JobStateField+" = ?", *state)
	}
	var count int64
	if err := qry.Count(&count).Error; err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
}
