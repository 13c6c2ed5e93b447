// Package worker runs the point-expiry sweep on an Asynq server. The sweep
// is the only producer of expired ledger rows; every expiry goes through the
// loyalty service's atomic write path, so the balance invariant holds for
// expired points exactly as it does for earns and redemptions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/purrfectbrew/purrfect-brew/internal/config"
	"github.com/purrfectbrew/purrfect-brew/internal/loyalty"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Start starts the Asynq worker in non-blocking mode and returns a stop
// function so the caller can coordinate shutdown.
func Start(cfg *config.Config, db *gorm.DB) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     2,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskExpirePoints, handleExpirePoints(logger, db, loyalty.NewService(db), cfg.PointsExpiryDays))

	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	logger.Info("Worker started", "expiry_days", cfg.PointsExpiryDays)
	return func() { srv.Shutdown() }, nil
}

// handleExpirePoints walks profiles whose balance is positive but whose
// ledger has been quiet past the cutoff, and zeroes each one through the
// loyalty service. Profiles with any recent ledger activity are left alone.
func handleExpirePoints(logger *slog.Logger, db *gorm.DB, svc *loyalty.Service, expiryDays int) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		sweepID := uuid.New().String()
		cutoff := time.Now().AddDate(0, 0, -expiryDays)

		var userIDs []string
		err := db.WithContext(ctx).
			Model(&models.Profile{}).
			Where("loyalty_points > 0").
			Where("user_id NOT IN (?)",
				db.Model(&models.LoyaltyTransaction{}).
					Select("user_id").
					Where("created_at > ?", cutoff),
			).
			Pluck("user_id", &userIDs).Error
		if err != nil {
			// Retryable: the sweep is idempotent, a later run picks up
			// whatever this one missed.
			return fmt.Errorf("failed to find expirable profiles: %w", err)
		}

		logger.Info("Expiry sweep started",
			"sweep_id", sweepID,
			"cutoff", cutoff.Format(time.RFC3339),
			"candidates", len(userIDs),
		)

		description := fmt.Sprintf("Points expired after %d days of inactivity", expiryDays)
		expiredTotal := 0
		for _, userID := range userIDs {
			expired, err := svc.ExpirePoints(ctx, userID, description)
			if err != nil {
				// Log and keep sweeping; one stuck profile must not block
				// the rest.
				logger.Error("Failed to expire points",
					"sweep_id", sweepID,
					"user_id", userID,
					"error", err.Error(),
				)
				continue
			}
			if expired > 0 {
				expiredTotal += expired
				logger.Info("Expired points",
					"sweep_id", sweepID,
					"user_id", userID,
					"points", expired,
				)
			}
		}

		logger.Info("Expiry sweep completed",
			"sweep_id", sweepID,
			"profiles", len(userIDs),
			"points_expired", expiredTotal,
		)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)
	}
}
