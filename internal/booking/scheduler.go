package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type pendingExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpiryScheduler periodically fails pending reservations whose checkout
// was abandoned, so their dates become bookable again.
type ExpiryScheduler struct {
	cron     *cron.Cron
	expirer  pendingExpirer
	schedule string
	ttl      time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// NewExpiryScheduler creates a scheduler running on a standard cron spec or
// descriptor such as "@every 1m".
func NewExpiryScheduler(expirer pendingExpirer, schedule string, ttl time.Duration, log *slog.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer:  expirer,
		schedule: schedule,
		ttl:      ttl,
		timeout:  time.Minute,
		log:      log,
	}
}

// Start registers the expiry job and starts the scheduler.
func (s *ExpiryScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runJob); err != nil {
		return fmt.Errorf("scheduling reservation expiry %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info("reservation expiry scheduler started", "schedule", s.schedule, "ttl", s.ttl)
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *ExpiryScheduler) Stop() {
	s.log.Info("stopping reservation expiry scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("reservation expiry scheduler stopped")
}

// RunOnce expires stale pending reservations immediately.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	return s.expirer.ExpirePending(ctx, s.ttl)
}

func (s *ExpiryScheduler) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("reservation expiry failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("expired pending reservations", "count", n)
	}
}
