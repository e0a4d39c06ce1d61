// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartTokenCleanupScheduler deletes used and expired login tokens every
// interval. The caller shuts the returned scheduler down.
func (s *PartnerAuthService) StartTokenCleanupScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			deleted, err := s.CleanupTokens(ctx)
			if err != nil {
				s.Logger.Error("[Scheduler] token cleanup failed", zap.Error(err))
				return
			}
			if deleted > 0 {
				s.Logger.Info("🧹 [Scheduler] removed stale login tokens", zap.Int64("count", deleted))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
