package publish

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob purges published configs that have not been read within maxAge
type CleanupJob struct {
	store  *Store
	maxAge time.Duration
	log    zerolog.Logger
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(store *Store, maxAge time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store:  store,
		maxAge: maxAge,
		log:    log.With().Str("job", "published_config_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "published_config_cleanup"
}

// Run executes one sweep
func (j *CleanupJob) Run() error {
	start := time.Now()

	purged, err := j.store.Sweep(context.Background(), j.maxAge)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("purged", purged).
		Dur("duration", time.Since(start)).
		Msg("Published config sweep completed")
	return nil
}
