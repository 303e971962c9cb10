package services

import (
	"context"

	"github.com/celestiaorg/docconv/internal/db/models"
	"github.com/celestiaorg/docconv/internal/db/repos"
)

// JobStore is the persistence contract the coordinator depends on
type JobStore interface {
	Create(ctx context.Context, id string, settings map[string]string) error
	Get(ctx context.Context, id string) (*models.Job, error)
	GetState(ctx context.Context, id string) (models.JobState, error)
	SetState(ctx context.Context, id string, state models.JobState) error
	SetError(ctx context.Context, id string, code int, message string) error
	SetCustomValue(ctx context.Context, id, key, value string) error
	GetCustomValues(ctx context.Context, id string) (map[string]string, error)
	GetSettings(ctx context.Context, id string) (map[string]string, error)
	List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error)
	Count(ctx context.Context, state *models.JobState) (int64, error)
}

var _ JobStore = &repos.JobRepository{}
