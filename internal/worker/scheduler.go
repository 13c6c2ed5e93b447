package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/purrfectbrew/purrfect-brew/internal/config"
)

// StartScheduler registers the periodic expiry sweep and starts the Asynq
// scheduler. Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskExpirePoints,
		nil, // empty payload, the handler sweeps all eligible profiles
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(24*time.Hour), // prevent duplicate if scheduler runs twice
	)

	entryID, err := scheduler.Register(cfg.PointsExpirySchedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register expiry schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"schedule", cfg.PointsExpirySchedule,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
