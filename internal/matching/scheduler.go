package matching

import (
	"context"
	"time"

	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

type Scheduler struct {
	service  Service
	interval time.Duration
}

func NewScheduler(service Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{service: service, interval: interval}
}

// Start matches due events once immediately and then on every tick until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runEvery(ctx, "match_due_events", s.interval, s.service.MatchDueEvents)
}

func (s *Scheduler) runEvery(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx, name, task)
	for {
		select {
		case <-ticker.C:
			s.run(ctx, name, task)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, name string, task func(context.Context) error) {
	start := time.Now()
	if err := task(ctx); err != nil {
		logging.Error().Err(err).Str("task", name).Msg("scheduled task failed")
		return
	}
	logging.Debug().Str("task", name).Dur("took", time.Since(start)).Msg("scheduled task finished")
}
