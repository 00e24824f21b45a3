package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/metrics"
)

const sweepTimeout = 30 * time.Second

// ExpiredSessionDeleter is the part of the session repository the sweeper needs.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// CleanupJob periodically deletes sessions that expired more than grace ago,
// together with their items. Lookups already ignore expired sessions, so the
// job only reclaims storage.
type CleanupJob struct {
	sessions ExpiredSessionDeleter
	grace    time.Duration
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCleanupJob(sessions ExpiredSessionDeleter, grace, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		grace:    grace,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("grace", j.grace).Msg("cleanup job started")
}

// Stop waits for an in-flight sweep to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	j.runCleanup(ctx, "expired sessions", func(ctx context.Context) (int64, error) {
		return j.sessions.DeleteExpired(ctx, j.grace)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
		return
	}
	if count > 0 {
		metrics.SessionsSwept.Add(float64(count))
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
