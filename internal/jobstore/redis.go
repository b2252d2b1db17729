// Copyright 2025 James Ross
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists jobs as JSON blobs keyed by id, with sorted-set
// indices for list_by_status and list_by_user so those operations never
// scan result blobs (spec.md §4.2). Grounded on the teacher's redisclient
// pooling conventions and the admin package's Scan-based key management.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "contentcore:job"}
}

func (s *RedisStore) jobKey(id string) string    { return fmt.Sprintf("%s:%s", s.prefix, id) }
func (s *RedisStore) statusKey(st job.Status) string { return fmt.Sprintf("%s:index:status:%s", s.prefix, st) }
func (s *RedisStore) userKey(userID string) string   { return fmt.Sprintf("%s:index:user:%s", s.prefix, userID) }

func (s *RedisStore) Create(ctx context.Context, j job.Job) error {
	b, err := j.Marshal()
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.jobKey(j.ID), b, 0)
	score := float64(j.CreatedAt.UnixNano())
	pipe.ZAdd(ctx, s.statusKey(j.Status), redis.Z{Score: score, Member: j.ID})
	if j.UserID != "" {
		pipe.ZAdd(ctx, s.userKey(j.UserID), redis.Z{Score: score, Member: j.ID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (job.Job, bool, error) {
	v, err := s.rdb.Get(ctx, s.jobKey(id)).Result()
	if err == redis.Nil {
		return job.Job{}, false, nil
	}
	if err != nil {
		return job.Job{}, false, err
	}
	j, err := job.Unmarshal([]byte(v))
	if err != nil {
		return job.Job{}, false, err
	}
	return j, true, nil
}

func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status job.Status, result json.RawMessage, errMsg string) error {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	oldStatus := j.Status
	now := time.Now().UTC()
	if status == job.StatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	if errMsg != "" {
		j.Error = errMsg
	}
	b, err := j.Marshal()
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.jobKey(id), b, 0)
	if oldStatus != status {
		pipe.ZRem(ctx, s.statusKey(oldStatus), id)
		pipe.ZAdd(ctx, s.statusKey(status), redis.Z{Score: float64(j.CreatedAt.UnixNano()), Member: id})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	j.RetryCount++
	b, err := j.Marshal()
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Set(ctx, s.jobKey(id), b, 0).Err(); err != nil {
		return 0, err
	}
	return j.RetryCount, nil
}

func (s *RedisStore) listByIndex(ctx context.Context, key string, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.rdb.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]job.Job, 0, len(ids))
	for _, id := range ids {
		j, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *RedisStore) ListByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error) {
	return s.listByIndex(ctx, s.statusKey(status), limit)
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string, limit int) ([]job.Job, error) {
	return s.listByIndex(ctx, s.userKey(userID), limit)
}

func (s *RedisStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for _, st := range []job.Status{job.StatusCompleted, job.StatusFailed, job.StatusDead} {
		ids, err := s.rdb.ZRange(ctx, s.statusKey(st), 0, -1).Result()
		if err != nil {
			return deleted, err
		}
		for _, id := range ids {
			j, ok, err := s.Get(ctx, id)
			if err != nil {
				return deleted, err
			}
			if !ok || j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
				continue
			}
			pipe := s.rdb.TxPipeline()
			pipe.Del(ctx, s.jobKey(id))
			pipe.ZRem(ctx, s.statusKey(st), id)
			if j.UserID != "" {
				pipe.ZRem(ctx, s.userKey(j.UserID), id)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

// Ping reports whether the store's Redis server is reachable, used by
// cmd/coreserver's readiness check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
