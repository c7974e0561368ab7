package valkey

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstore/internal/db"
)

// scanBatch is the COUNT hint per SCAN round-trip.
const scanBatch = 200

// HSetMulti pipelines one HSET per item. Items before the failing one may
// already be written.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make(rueidis.Commands, len(items))
	for i := range items {
		hset := s.b().Hset().Key(items[i].Key).FieldValue()
		for k, v := range items[i].Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds[i] = hset.Build()
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Key: items[i].Key, Err: err}
		}
	}
	return nil
}

// HGetAllMulti pipelines HGETALL for keys. A missing key comes back as an
// empty map at its position.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}
	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Key: keys[i], Err: err}
		}
		out[i] = m
	}
	return out, nil
}

// DelMulti deletes keys in one DEL and returns how many existed.
func (s *Store) DelMulti(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.do(ctx, s.b().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: fmt.Errorf("%d keys: %w", len(keys), err)}
	}
	return int(n), nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Key: key, Err: err}
	}
	return n > 0, nil
}

// scanKeys collects every key matching pattern.
func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		entry, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Key: pattern, Err: err}
		}
		keys = append(keys, entry.Elements...)
		if cursor = entry.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
