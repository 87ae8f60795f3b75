// Copyright (c) 2025 Northbound System
package config

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a new Redis client from the resolved configuration.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	log.Printf("NewRedisClient: addr=%s db=%d passwordSet=%v", cfg.QueueAddr, cfg.QueueDB, cfg.QueuePassword != "")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.QueueAddr,
		DB:       cfg.QueueDB,
		Password: cfg.QueuePassword,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("NewRedisClient: failed to ping Redis: %v", err)
		return nil, err
	}

	log.Printf("NewRedisClient: successfully connected to Redis")
	return client, nil
}

