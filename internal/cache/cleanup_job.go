package cache

import "github.com/rs/zerolog"

// CleanupJob removes expired entries from the cache database. Scheduled to
// run daily via internal/scheduler.
type CleanupJob struct {
	store *Store
	log   zerolog.Logger
}

// NewCleanupJob builds a cache cleanup job.
func NewCleanupJob(store *Store, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{store: store, log: log.With().Str("job", "cache_cleanup").Logger()}
}

// Run deletes expired rows from every cache table.
func (j *CleanupJob) Run() error {
	results, err := j.store.DeleteExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("cache cleanup failed")
		return err
	}
	var total int64
	for table, count := range results {
		if count > 0 {
			j.log.Info().Str("table", table).Int64("deleted", count).Msg("cleaned up expired cache entries")
			total += count
		}
	}
	if total > 0 {
		j.log.Info().Int64("total_deleted", total).Msg("cache cleanup completed")
	}
	return nil
}

// Name identifies this job for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
