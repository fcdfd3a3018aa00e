// Package checkpoint persists WorkflowState snapshots keyed by thread so an
// interrupted or retried graph run can resume from its last durable point.
// Grounded on the teacher's redis.Client connection/retry wrapper; the
// storage shape (an append-only per-thread list) is a direct analogue of
// the original system's LangGraph checkpointer, which keeps every
// superstep's state rather than overwriting it.
package checkpoint

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/s1v4-d/nlsql-mas/redis"
	"github.com/s1v4-d/nlsql-mas/workflow"
)

// Config controls checkpoint retention.
type Config struct {
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX" default:"nlsql:checkpoint:"`
	TTL       time.Duration `yaml:"ttl" env:"TTL" default:"24h"`
}

// Store is a thread-keyed, append-only checkpoint log backed by Redis.
type Store struct {
	cfg    Config
	client *redis.Client
}

// New constructs a Store bound to client.
func New(cfg Config, client *redis.Client) *Store {
	return &Store{cfg: cfg, client: client}
}

func (s *Store) key(threadID string) string {
	return s.cfg.KeyPrefix + threadID
}

// Put appends state as the newest checkpoint for threadID and refreshes the
// key's TTL so abandoned threads are eventually reaped.
func (s *Store) Put(ctx context.Context, threadID string, state workflow.WorkflowState) error {
	raw, err := state.ToJSON()
	if err != nil {
		return errors.Wrap(err, "checkpoint: can't marshal state")
	}

	key := s.key(threadID)
	if err := s.client.RPush(ctx, key, raw).Err(); err != nil {
		return errors.Wrapf(err, "checkpoint: can't append checkpoint for thread %q", threadID)
	}
	if err := s.client.Expire(ctx, key, s.cfg.TTL).Err(); err != nil {
		return errors.Wrapf(err, "checkpoint: can't refresh ttl for thread %q", threadID)
	}

	return nil
}

// GetLatest returns the most recently Put state for threadID, and false if
// no checkpoint exists yet.
func (s *Store) GetLatest(ctx context.Context, threadID string) (workflow.WorkflowState, bool, error) {
	raw, err := s.client.LIndex(ctx, s.key(threadID), -1).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return workflow.WorkflowState{}, false, nil
		}
		return workflow.WorkflowState{}, false, errors.Wrapf(err, "checkpoint: can't read latest checkpoint for thread %q", threadID)
	}

	state, err := workflow.FromJSON(raw)
	if err != nil {
		return workflow.WorkflowState{}, false, errors.Wrapf(err, "checkpoint: can't unmarshal checkpoint for thread %q", threadID)
	}
	return state, true, nil
}

// List returns every checkpoint recorded for threadID, oldest first.
func (s *Store) List(ctx context.Context, threadID string) ([]workflow.WorkflowState, error) {
	rawList, err := s.client.LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: can't list checkpoints for thread %q", threadID)
	}

	states := make([]workflow.WorkflowState, 0, len(rawList))
	for i, raw := range rawList {
		state, err := workflow.FromJSON([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint: can't unmarshal checkpoint %d for thread %q", i, threadID)
		}
		states = append(states, state)
	}

	return states, nil
}

// Key exposes the Redis key a thread's checkpoints are stored under, for diagnostics.
func (s *Store) Key(threadID string) string {
	return s.key(threadID)
}
