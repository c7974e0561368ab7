package valkey

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/ragstore/internal/db"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/embedding/hashing"
)

const testDims = 32

// fakeStore is a db.Store whose methods defer to the on* hooks when set.
type fakeStore struct {
	onPing        func(ctx context.Context) error
	onHSet        func(ctx context.Context, items []db.HashSetItem) error
	onHGetAll     func(ctx context.Context, keys []string) ([]map[string]string, error)
	onDel         func(ctx context.Context, keys []string) (int, error)
	onExists      func(ctx context.Context, key string) (bool, error)
	onCreateIndex func(ctx context.Context, def *db.Index) error
	onIndexExists func(ctx context.Context, name string) (bool, error)
	onKNN         func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	onList        func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	closed        bool
}

func (m *fakeStore) Ping(ctx context.Context) error {
	if m.onPing != nil {
		return m.onPing(ctx)
	}
	return nil
}

func (m *fakeStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.onHSet != nil {
		return m.onHSet(ctx, items)
	}
	return nil
}

func (m *fakeStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.onHGetAll != nil {
		return m.onHGetAll(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *fakeStore) DelMulti(ctx context.Context, keys []string) (int, error) {
	if m.onDel != nil {
		return m.onDel(ctx, keys)
	}
	return len(keys), nil
}

func (m *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.onExists != nil {
		return m.onExists(ctx, key)
	}
	return true, nil
}

func (m *fakeStore) CreateIndex(ctx context.Context, def *db.Index) error {
	if m.onCreateIndex != nil {
		return m.onCreateIndex(ctx, def)
	}
	return nil
}

func (m *fakeStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.onIndexExists != nil {
		return m.onIndexExists(ctx, name)
	}
	return false, nil
}

func (m *fakeStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.onKNN != nil {
		return m.onKNN(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *fakeStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.onList != nil {
		return m.onList(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *fakeStore) Close() { m.closed = true }

func newTestBackend(t *testing.T) (*Backend, *fakeStore) {
	t.Helper()
	fs := &fakeStore{}
	h := hashing.New(testDims)
	b, err := New(fs, domain.Split{Document: h, Query: h}, Config{Prefix: "rag:", Dimensions: testDims})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.now = func() time.Time { return time.Unix(0, 1000) }
	return b, fs
}
