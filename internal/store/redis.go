// Package store persists job envelopes in Redis. Every write refreshes the
// configured TTL, so a job survives exactly that long past its last update
// and then reads as absent. Single writer per key is assumed; Merge is a
// plain read-modify-write with no optimistic locking.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediagrab/internal/core/job"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL, opens a client and verifies connectivity.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string {
	return "job:" + id
}

// Get returns the envelope for id, or nil without error when the key is
// absent or expired.
func (s *Store) Get(ctx context.Context, id string) (*job.Envelope, error) {
	raw, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var env job.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &env, nil
}

// Set overwrites the envelope and refreshes its TTL.
func (s *Store) Set(ctx context.Context, id string, env *job.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, jobKey(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set job %s: %w", id, err)
	}
	return nil
}

// Merge applies a merge-patch to the stored envelope and writes it back,
// refreshing the TTL. Returns nil without error when the key is gone —
// expiry is expected, not exceptional.
func (s *Store) Merge(ctx context.Context, id string, p job.Patch) (*job.Envelope, error) {
	env, err := s.Get(ctx, id)
	if err != nil || env == nil {
		return nil, err
	}
	env.Apply(p)
	if err := s.Set(ctx, id, env); err != nil {
		return nil, err
	}
	return env, nil
}

// Ping probes store connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
