package worker

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskExpirePoints = "loyalty:expire_points"
)

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before EnqueueExpirePoints.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// EnqueueExpirePoints triggers an immediate expiry sweep outside the cron
// schedule (staff tooling and tests). The sweep walks every eligible
// profile, so the payload is empty.
func EnqueueExpirePoints() error {
	if client == nil {
		return errors.New("worker client not initialized")
	}

	task := asynq.NewTask(
		TaskExpirePoints,
		nil,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	_, err := client.Enqueue(task)
	return err
}
