package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// jobToMap flattens a job into Redis Hash fields. Optional timestamps
// are stored as empty strings when unset.
func jobToMap(j *job.Job) map[string]any {
	m := map[string]any{
		"id":           j.ID.String(),
		"type":         j.Type,
		"payload":      string(j.Payload),
		"priority":     int(j.Priority),
		"state":        string(j.State),
		"max_retries":  j.MaxRetries,
		"retry_count":  j.RetryCount,
		"last_error":   j.LastError,
		"result":       string(j.Result),
		"progress":     j.Progress,
		"created_at":   j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"started_at":   optTime(j.StartedAt),
		"completed_at": optTime(j.CompletedAt),
		"next_run_at":  optTime(j.NextRunAt),
	}
	return m
}

// jobFromMap rebuilds a job from Redis Hash fields.
func jobFromMap(fields map[string]string) (*job.Job, error) {
	jobID, err := id.ParseJobID(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode job id: %w", err)
	}

	priority, err := strconv.Atoi(fields["priority"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode priority: %w", err)
	}
	maxRetries, err := strconv.Atoi(fields["max_retries"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode max_retries: %w", err)
	}
	retryCount, err := strconv.Atoi(fields["retry_count"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode retry_count: %w", err)
	}
	progress, err := strconv.Atoi(fields["progress"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode progress: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode created_at: %w", err)
	}

	startedAt, err := parseOptTime(fields["started_at"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode started_at: %w", err)
	}
	completedAt, err := parseOptTime(fields["completed_at"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode completed_at: %w", err)
	}
	nextRunAt, err := parseOptTime(fields["next_run_at"])
	if err != nil {
		return nil, fmt.Errorf("jobq/redis: decode next_run_at: %w", err)
	}

	j := &job.Job{
		ID:          jobID,
		Type:        fields["type"],
		Priority:    job.Priority(priority),
		State:       job.State(fields["state"]),
		MaxRetries:  maxRetries,
		RetryCount:  retryCount,
		LastError:   fields["last_error"],
		Progress:    progress,
		CreatedAt:   createdAt,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		NextRunAt:   nextRunAt,
	}
	if fields["payload"] != "" {
		j.Payload = []byte(fields["payload"])
	}
	if fields["result"] != "" {
		j.Result = []byte(fields["result"])
	}
	return j, nil
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
