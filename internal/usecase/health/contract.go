package health

import "context"

// BackendPinger checks similarity backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// EmbedderChecker checks embedding provider availability.
type EmbedderChecker interface {
	HealthCheck(ctx context.Context) error
}
