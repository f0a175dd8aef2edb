// Package redis implements job.Store on Redis. Each job is a Hash and
// a Set tracks all job IDs for enumeration; state transitions use
// WATCH-based optimistic transactions so claims stay at-most-once.
//
// The backend makes the job board visible to external tooling (status
// dashboards, CLIs) while scheduling itself remains in-process; it does
// not make the scheduler multi-node, and the ready queue is still the
// in-memory priority queue.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	sched, err := jobq.New(jobq.WithStore(s))
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "jobq:"

// jobKey returns the Hash key for a job: jobq:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// casAttempts bounds the optimistic retry loop for WATCH transactions.
const casAttempts = 5

// Store implements job.Store on a Redis client.
type Store struct {
	client *goredis.Client
}

// New creates a Store backed by the given client.
func New(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Ping verifies connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("jobq/redis: ping: %w", err)
	}
	return nil
}

// Close releases the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
