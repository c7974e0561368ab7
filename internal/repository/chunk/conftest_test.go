package chunk

import (
	"context"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	addFn            func(ctx context.Context, collection string, records []backend.Record) error
	deleteFn         func(ctx context.Context, collection string, ids []string) (int, error)
	updateMetadataFn func(ctx context.Context, collection string, ids []string, metas []backend.Metadata) error
	queryFn          func(ctx context.Context, collection, text string, k int, where filter.Expression) ([]backend.Hit, error)
	getFn            func(ctx context.Context, collection string, where filter.Expression, limit int) ([]backend.Record, error)
	getByIDsFn       func(ctx context.Context, collection string, ids []string) ([]backend.Record, error)
}

func (m *mockStore) Add(ctx context.Context, collection string, records []backend.Record) error {
	if m.addFn != nil {
		return m.addFn(ctx, collection, records)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, ids)
	}
	return len(ids), nil
}

func (m *mockStore) UpdateMetadata(ctx context.Context, collection string, ids []string, metas []backend.Metadata) error {
	if m.updateMetadataFn != nil {
		return m.updateMetadataFn(ctx, collection, ids, metas)
	}
	return nil
}

func (m *mockStore) Query(
	ctx context.Context, collection, text string, k int, where filter.Expression,
) ([]backend.Hit, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, collection, text, k, where)
	}
	return nil, nil
}

func (m *mockStore) Get(
	ctx context.Context, collection string, where filter.Expression, limit int,
) ([]backend.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, collection, where, limit)
	}
	return nil, nil
}

func (m *mockStore) GetByIDs(ctx context.Context, collection string, ids []string) ([]backend.Record, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, collection, ids)
	}
	return nil, nil
}
