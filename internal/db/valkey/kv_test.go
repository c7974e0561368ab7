package valkey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/ragstore/internal/db"
)

func TestGet(t *testing.T) {
	s, c := mockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:hit")).Return(mock.Result(mock.RedisString("vec")))
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "emb:miss")).Return(mock.Result(mock.RedisNil()))

	got, err := s.Get(context.Background(), "emb:hit")
	if err != nil || string(got) != "vec" {
		t.Fatalf("Get(hit) = %q, %v", got, err)
	}
	if _, err := s.Get(context.Background(), "emb:miss"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("Get(miss) error = %v", err)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		args []string
	}{
		{"no expiry", 0, []string{"SET", "k", "v"}},
		{"negative ttl means no expiry", -time.Second, []string{"SET", "k", "v"}},
		{"with ttl", time.Minute, []string{"SET", "k", "v", "EX", "60"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := mockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match(tt.args...)).Return(mock.Result(mock.RedisString("OK")))
			if err := s.Set(context.Background(), "k", []byte("v"), tt.ttl); err != nil {
				t.Fatal(err)
			}
		})
	}
}
