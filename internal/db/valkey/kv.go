package valkey

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstore/internal/db"
)

// Get reads key. A missing key yields db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// Set writes value at key, with EX when ttl is positive.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.b().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Key: key, Err: err}
	}
	return nil
}
