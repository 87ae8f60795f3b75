// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/corpus/internal/logger"
)

// RedisQueue implements Queue using a single Redis List shared across
// every tenant: jobs carry their own Tenant field rather than each
// tenant owning a separate queue key, so one worker pool drains every
// tenant's work in submission order.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a new Redis-backed queue under key.
func NewRedisQueue(client *redis.Client, key string) (*RedisQueue, error) {
	if key == "" {
		key = "jobs:documents"
	}
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("jobs: ping redis: %w", err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue adds an envelope to the queue using RPUSH.
func (r *RedisQueue) Enqueue(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("jobs: marshal envelope: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("jobs: rpush: %w", err)
	}
	logger.Printf("jobs: enqueued job_id=%s tenant=%s type=%s", env.JobID, env.Tenant, env.Type)
	return nil
}

// Dequeue blocks until an envelope is available using BLPOP, then
// returns it.
func (r *RedisQueue) Dequeue(ctx context.Context) (Envelope, error) {
	type result struct {
		val []string
		err error
	}
	resultChan := make(chan result, 1)
	go func() {
		val, err := r.client.BLPop(ctx, 0, r.key).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if res.err == redis.Nil {
				return Envelope{}, ctx.Err()
			}
			return Envelope{}, fmt.Errorf("jobs: blpop: %w", res.err)
		}
		if len(res.val) < 2 {
			return Envelope{}, fmt.Errorf("jobs: unexpected blpop result shape")
		}
		var env Envelope
		if err := json.Unmarshal([]byte(res.val[1]), &env); err != nil {
			return Envelope{}, fmt.Errorf("jobs: unmarshal envelope: %w", err)
		}
		return env, nil
	}
}
