package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// FanOutScheduler periodically resumes cancellation fan-outs that did not
// complete, e.g. after a crash or a partial failure.
type FanOutScheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func NewFanOutScheduler(svc *CancellationService, interval time.Duration, logger *slog.Logger) (*FanOutScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			done, err := svc.ResumePendingFanOuts(ctx)
			if err != nil {
				logger.Error("resume fan-outs", slog.Int("completed", done), slog.String("error", err.Error()))
				return
			}
			if done > 0 {
				logger.Info("resumed fan-outs", slog.Int("completed", done))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("register fan-out job: %w", err)
	}
	return &FanOutScheduler{sched: sched, logger: logger}, nil
}

func (s *FanOutScheduler) Start() {
	s.sched.Start()
	s.logger.Info("fan-out scheduler started")
}

func (s *FanOutScheduler) Shutdown() error {
	return s.sched.Shutdown()
}
