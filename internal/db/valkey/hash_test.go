package valkey

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/ragstore/internal/db"
)

func hash(fields map[string]string) rueidis.RedisResult {
	m := make(map[string]rueidis.RedisMessage, len(fields))
	for k, v := range fields {
		m[k] = mock.RedisString(v)
	}
	return mock.Result(mock.RedisMap(m))
}

func TestHSetMulti(t *testing.T) {
	items := []db.HashSetItem{
		{Key: "chunk:1", Fields: map[string]string{"__content": "one"}},
		{Key: "chunk:2", Fields: map[string]string{"__content": "two"}},
	}

	t.Run("all written", func(t *testing.T) {
		s, c := mockStore(t)
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1)), mock.Result(mock.RedisInt64(1))})
		if err := s.HSetMulti(context.Background(), items); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("error names the failed key", func(t *testing.T) {
		s, c := mockStore(t)
		c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1)), mock.ErrorResult(errors.New("OOM"))})
		err := s.HSetMulti(context.Background(), items)
		var dbErr *db.Error
		if !errors.As(err, &dbErr) || dbErr.Key != "chunk:2" || dbErr.Op != db.OpHSet {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("nothing to write", func(t *testing.T) {
		if err := newStore(nil).HSetMulti(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	})
}

func TestHGetAllMulti_MissingKeyIsEmptyMap(t *testing.T) {
	s, c := mockStore(t)
	c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{hash(map[string]string{"__source": "a.txt"}), hash(nil)})

	got, err := s.HGetAllMulti(context.Background(), []string{"chunk:1", "chunk:gone"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["__source"] != "a.txt" || len(got[1]) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestDelMulti(t *testing.T) {
	s, c := mockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("DEL", "a", "b", "c")).Return(mock.Result(mock.RedisInt64(2)))

	n, err := s.DelMulti(context.Background(), []string{"a", "b", "c"})
	if err != nil || n != 2 {
		t.Fatalf("DelMulti = %d, %v; want 2, nil", n, err)
	}
}

func TestExists(t *testing.T) {
	s, c := mockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("EXISTS", "chunk:1")).Return(mock.Result(mock.RedisInt64(0)))

	ok, err := s.Exists(context.Background(), "chunk:1")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v; want false, nil", ok, err)
	}
}

func TestScanKeys_FollowsCursor(t *testing.T) {
	s, c := mockStore(t)
	page := func(cursor int64, keys ...string) rueidis.RedisResult {
		msgs := make([]rueidis.RedisMessage, len(keys))
		for i, k := range keys {
			msgs[i] = mock.RedisString(k)
		}
		return mock.Result(mock.RedisArray(mock.RedisInt64(cursor), mock.RedisArray(msgs...)))
	}
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), command("SCAN")).Return(page(42, "key1")),
		c.EXPECT().Do(gomock.Any(), command("SCAN")).Return(page(0, "key2", "key3")),
	)

	keys, err := s.scanKeys(context.Background(), "prefix:*")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"key1", "key2", "key3"}) {
		t.Fatalf("keys = %v", keys)
	}
}
