// Package health reports backend and embedder availability.
package health

import (
	"context"
	"time"
)

// Status is the aggregated health.
type Status string

const (
	// Healthy means every component answered.
	Healthy Status = "ok"
	// Degraded means the backend is up but the embedder is not; scans and
	// deletes still work.
	Degraded Status = "degraded"
	// Unhealthy means the backend is down.
	Unhealthy Status = "error"
)

// CheckResult is one component outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates component results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs health probes.
type Service struct {
	backend  BackendPinger
	embedder EmbedderChecker
	timeout  time.Duration
}

// New creates a health service. embedder may be nil.
func New(backend BackendPinger, embedder EmbedderChecker) *Service {
	return &Service{backend: backend, embedder: embedder, timeout: DefaultCheckTimeout}
}

// Check probes every component with its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		"backend": s.probe(ctx, s.backend.Ping),
	}
	if s.embedder != nil {
		checks["embedding"] = s.probe(ctx, s.embedder.HealthCheck)
	}

	status := Healthy
	switch {
	case checks["backend"] == CheckError:
		status = Unhealthy
	case checks["embedding"] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
