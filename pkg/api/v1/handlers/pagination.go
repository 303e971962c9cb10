package handlers

import "github.com/celestiaorg/docconv/internal/db/models"

// getPaginationOptions returns a ListOptions struct with validated pagination parameters
func getPaginationOptions(page int, state *models.JobState) *models.ListOptions {
	// Validate and set defaults for page
	if page < 1 {
		page = 1
	}

	return &models.ListOptions{
		Limit:  models.DefaultLimit,
		Offset: (page - 1) * models.DefaultLimit,
		State:  state,
	}
}
