// Package valkey implements db.Store on rueidis. It targets Valkey with the
// valkey-search module and Redis 8+, which accept the same FT.* commands.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstore/internal/db"
)

var _ db.Store = (*Store)(nil)

const readyPollInterval = 100 * time.Millisecond

// Config selects the server. Username and DB are optional.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

func (c Config) clientOption() (rueidis.ClientOption, error) {
	if len(c.Addrs) == 0 {
		return rueidis.ClientOption{}, errors.New("valkey: no server address configured")
	}
	return rueidis.ClientOption{
		InitAddress:  c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		SelectDB:     c.DB,
		DisableCache: true,
		// FT.SEARCH replies are decoded from RESP2 arrays.
		AlwaysRESP2: true,
	}, nil
}

// Store implements db.Store with rueidis.
type Store struct {
	client rueidis.Client
}

// NewStore creates the client. The connection is not checked here; call
// WaitForReady before first use.
func NewStore(cfg Config) (*Store, error) {
	opt, err := cfg.clientOption()
	if err != nil {
		return nil, err
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("valkey: connect %v: %w", cfg.Addrs, err)
	}
	return newStore(client), nil
}

func newStore(c rueidis.Client) *Store { return &Store{client: c} }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.client.Close() }

// WaitForReady blocks until PING succeeds, retrying every
// readyPollInterval. After timeout it returns the deadline error joined
// with the last ping failure.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last error
	for attempt := 0; ; attempt++ {
		if last = s.Ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready after %d attempts: %w", attempt+1, errors.Join(ctx.Err(), last))
		case <-time.After(readyPollInterval):
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// serverSays reports whether err is a server reply mentioning any of
// phrases, case-insensitively.
func serverSays(err error, phrases ...string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// missingIndex matches the replies valkey-search and Redis give for an
// unknown index.
func missingIndex(err error) bool {
	return serverSays(err, "unknown index name", "no such index", "not found")
}
