// Package jobs provides the durable delayed job queue the engine enqueues
// background work into: rating recalculations, payment reminders. Jobs are
// scheduled, never awaited; workers consume them out of process.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	JobUpdateUserRating = "update_user_rating"
	JobSimbiReminder    = "remind_paying_simbi"

	scheduleKey    = "jobs:scheduled"
	dedupePrefix   = "jobs:unique:"
	dedupeLifetime = 24 * time.Hour
)

// Job is one unit of delayed work. Key is the idempotency key: two enqueues
// with the same key within the dedupe window collapse into one job.
type Job struct {
	Name   string            `json:"name"`
	Key    string            `json:"key"`
	Args   map[string]string `json:"args"`
	RunAt  time.Time         `json:"run_at"`
	Queued time.Time         `json:"queued_at"`
}

type JobQueue interface {
	EnqueueIn(ctx context.Context, name, key string, args map[string]string, delay time.Duration) error
}

type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) JobQueue {
	return &redisQueue{client: client}
}

func (q *redisQueue) EnqueueIn(ctx context.Context, name, key string, args map[string]string, delay time.Duration) error {
	ok, err := q.client.SetNX(ctx, dedupePrefix+key, 1, dedupeLifetime).Result()
	if err != nil {
		return fmt.Errorf("set job dedupe key: %w", err)
	}
	if !ok {
		// Already scheduled within the window.
		return nil
	}

	now := time.Now()
	job := Job{Name: name, Key: key, Args: args, RunAt: now.Add(delay), Queued: now}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.client.ZAdd(ctx, scheduleKey, &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	return nil
}
