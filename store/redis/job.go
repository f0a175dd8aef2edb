package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

var _ job.Store = (*Store)(nil)

// SaveJob stores a new job Hash and indexes its ID.
func (s *Store) SaveJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobq/redis: save check exists: %w", err)
	}
	if exists > 0 {
		return job.ErrAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, j.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobq/redis: save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, job.ErrNotFound
	}
	return jobFromMap(fields)
}

// UpdateJob replaces the stored record for an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobq/redis: update check exists: %w", err)
	}
	if exists == 0 {
		return job.ErrNotFound
	}

	if err := s.client.HSet(ctx, key, jobToMap(j)).Err(); err != nil {
		return fmt.Errorf("jobq/redis: update job: %w", err)
	}
	return nil
}

// transition runs an optimistic compare-and-set on one job: mutate is
// called with the current record and returns the fields to write, or an
// error to abort. The WATCH guarantees no concurrent writer slipped in
// between read and write.
func (s *Store) transition(ctx context.Context, jobID id.JobID, mutate func(j *job.Job) (map[string]any, error)) (*job.Job, error) {
	key := jobKey(jobID.String())

	var result *job.Job
	txn := func(tx *goredis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("jobq/redis: transition read: %w", err)
		}
		if len(fields) == 0 {
			return job.ErrNotFound
		}

		j, err := jobFromMap(fields)
		if err != nil {
			return err
		}

		writes, err := mutate(j)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, writes)
			return nil
		})
		if err != nil {
			return err
		}
		result = j
		return nil
	}

	for range casAttempts {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("jobq/redis: transition contention on job %s", jobID.String())
}

// ClaimJob atomically transitions a pending job to running.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.transition(ctx, jobID, func(j *job.Job) (map[string]any, error) {
		if j.State != job.StatePending {
			return nil, job.ErrInvalidTransition
		}
		now := time.Now().UTC()
		j.State = job.StateRunning
		j.StartedAt = &now
		return map[string]any{
			"state":      string(job.StateRunning),
			"started_at": now.Format(time.RFC3339Nano),
		}, nil
	})
}

// CancelJob transitions a pending job to cancelled.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) error {
	_, err := s.transition(ctx, jobID, func(j *job.Job) (map[string]any, error) {
		if j.State != job.StatePending {
			return nil, job.ErrInvalidTransition
		}
		j.State = job.StateCancelled
		return map[string]any{"state": string(job.StateCancelled)}, nil
	})
	return err
}

// WakeJob transitions a retrying job back to pending.
func (s *Store) WakeJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.transition(ctx, jobID, func(j *job.Job) (map[string]any, error) {
		if j.State != job.StateRetrying {
			return nil, job.ErrInvalidTransition
		}
		j.State = job.StatePending
		j.NextRunAt = nil
		return map[string]any{
			"state":       string(job.StatePending),
			"next_run_at": "",
		}, nil
	})
}

// ResetJob transitions a failed job back to pending for an explicit retry.
func (s *Store) ResetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.transition(ctx, jobID, func(j *job.Job) (map[string]any, error) {
		if j.State != job.StateFailed {
			return nil, job.ErrInvalidTransition
		}
		j.State = job.StatePending
		j.RetryCount = 0
		j.LastError = ""
		j.Progress = 0
		j.StartedAt = nil
		j.CompletedAt = nil
		j.NextRunAt = nil
		return map[string]any{
			"state":        string(job.StatePending),
			"retry_count":  0,
			"last_error":   "",
			"progress":     0,
			"started_at":   "",
			"completed_at": "",
			"next_run_at":  "",
		}, nil
	})
}

// SetProgress records handler progress for a running job.
func (s *Store) SetProgress(ctx context.Context, jobID id.JobID, pct int) error {
	_, err := s.transition(ctx, jobID, func(j *job.Job) (map[string]any, error) {
		if j.State != job.StateRunning {
			return nil, job.ErrInvalidTransition
		}
		if pct <= j.Progress {
			return map[string]any{"progress": j.Progress}, nil
		}
		j.Progress = pct
		return map[string]any{"progress": pct}, nil
	})
	return err
}

// DeleteJob removes a job and its index entry.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	key := jobKey(jobID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobq/redis: delete check exists: %w", err)
	}
	if exists == 0 {
		return job.ErrNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jobID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobq/redis: delete job: %w", err)
	}
	return nil
}

// allJobs loads every indexed job. Dangling index entries are skipped.
func (s *Store) allJobs(ctx context.Context) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: list job ids: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, err := s.getJobByKey(ctx, jobKey(jID))
		if errors.Is(err, job.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ListJobsByState returns jobs in the given state, most recently
// created first. An empty state matches all jobs.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}

	result := jobs[:0]
	for _, j := range jobs {
		if state != "" && j.State != state {
			continue
		}
		result = append(result, j)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CountJobsByState returns the number of stored jobs per state.
func (s *Store) CountJobsByState(ctx context.Context) (map[job.State]int, error) {
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[job.State]int)
	for _, j := range jobs {
		counts[j.State]++
	}
	return counts, nil
}

// SweepJobs deletes completed and failed jobs whose CompletedAt is
// older than the given age.
func (s *Store) SweepJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	jobs, err := s.allJobs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	for _, j := range jobs {
		if j.State != job.StateCompleted && j.State != job.StateFailed {
			continue
		}
		if j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}
		if err := s.DeleteJob(ctx, j.ID); err != nil && !errors.Is(err, job.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
