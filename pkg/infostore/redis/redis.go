// Package redis implements engine.InfoStore with one key per upload,
// using redis/go-redis/v9 — already present in the teacher's own
// dependency graph (used there by the Redis locker, not an info store).
package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Store persists records as JSON strings under "<prefix><id>" keys.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an already-connected client. keyPrefix namespaces keys when
// the Redis instance is shared with other applications.
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Create(ctx context.Context, record engine.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(record.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("redis: record already exists")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (engine.Record, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Record{}, engine.ErrRecordNotFound
	}
	if err != nil {
		return engine.Record{}, err
	}

	var rec engine.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return engine.Record{}, err
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, record engine.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// XX fails the write if the key is absent, preserving the same
	// not-found semantics the filesystem and sql backends give.
	ok, err := s.client.SetXX(ctx, s.key(record.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return engine.ErrRecordNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

var _ engine.InfoStore = (*Store)(nil)
