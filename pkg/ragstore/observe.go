package ragstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Client operations by name and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "Client operation latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
	var err error
	if m.operations, err = shared(reg, m.operations); err != nil {
		return nil, err
	}
	if m.duration, err = shared(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// shared registers c and returns it, or returns the equivalent collector a
// previous client already registered on reg.
func shared[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return c, nil
	case !errors.As(err, &dup):
		return c, fmt.Errorf("ragstore: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("ragstore: metric already registered as %T", dup.ExistingCollector)
	}
	return existing, nil
}

// observer records client calls in the optional metrics and logger.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// track starts timing op. Call the result with a pointer to the
// operation's named error once it has finished:
//
//	defer c.obs.track("query")(&err)
func (o *observer) track(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		o.record(op, time.Since(start), err)
	}
}

func (o *observer) record(op string, took time.Duration, err error) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(took.Seconds())
	}
	switch {
	case o.logger == nil:
	case err != nil:
		o.logger.Warn("ragstore call failed", slog.String("op", op), slog.Duration("took", took), slog.Any("error", err))
	default:
		o.logger.Debug("ragstore call", slog.String("op", op), slog.Duration("took", took))
	}
}
