package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunInfo describes the last completed run of a job.
type RunInfo struct {
	Job        string         `json:"job"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Success    bool           `json:"success"`
	Counts     map[string]int `json:"counts,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, info RunInfo) error
	Last(ctx context.Context, job string) (RunInfo, bool, error)
}

type MemoryRecorder struct {
	mu   sync.RWMutex
	last map[string]RunInfo
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{last: make(map[string]RunInfo)}
}

func (r *MemoryRecorder) Record(_ context.Context, info RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[info.Job] = info
	return nil
}

func (r *MemoryRecorder) Last(_ context.Context, job string) (RunInfo, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.last[job]
	return info, ok, nil
}

// RedisRecorder shares last-run info between instances.
type RedisRecorder struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRecorder(rdb *redis.Client) *RedisRecorder {
	return &RedisRecorder{rdb: rdb, prefix: "call-analytics:lastrun:"}
}

func (r *RedisRecorder) Record(ctx context.Context, info RunInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+info.Job, b, 0).Err()
}

func (r *RedisRecorder) Last(ctx context.Context, job string) (RunInfo, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+job).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunInfo{}, false, nil
	}
	if err != nil {
		return RunInfo{}, false, err
	}
	var info RunInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return RunInfo{}, false, err
	}
	return info, true, nil
}
