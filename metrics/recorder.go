// Package metrics exposes controller activity as Prometheus collectors.
package metrics

import (
	"context"
	"fmt"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures the Recorder collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// Recorder is an auth.ActivitySink backed by Prometheus collectors.
type Recorder struct {
	Operations  *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

var _ auth.ActivitySink = (*Recorder)(nil)

// NewRecorder constructs the collectors and registers them with the provided
// registerer. Collectors already registered under the same name are reused.
func NewRecorder(opts Options) (*Recorder, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "authweb"
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "auth"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	operations, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operations_total",
		Help:      "Total number of controller operations partitioned by operation, result, and error kind.",
	}, []string{"operation", "result", "error_kind"}))
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "phase_transitions_total",
		Help:      "Total number of session phase changes partitioned by source and target phase.",
	}, []string{"from", "to"}))
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operation_duration_seconds",
		Help:      "Histogram of controller operation latencies in seconds, identity provider call included.",
		Buckets:   buckets,
	}, []string{"operation"})

	if err := reg.Register(duration); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				duration = existing
			} else {
				return nil, fmt.Errorf("existing duration collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register duration collector: %w", err)
		}
	}

	return &Recorder{
		Operations:  operations,
		Transitions: transitions,
		Duration:    duration,
	}, nil
}

func registerCounter(reg prometheus.Registerer, counter *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing counter collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register counter collector: %w", err)
	}
	return counter, nil
}

// Record implements auth.ActivitySink.
func (r *Recorder) Record(_ context.Context, event auth.ActivityEvent) error {
	if r == nil {
		return nil
	}

	result := "success"
	if !event.Success {
		result = "failure"
	}

	op := string(event.Operation)
	r.Operations.WithLabelValues(op, result, string(event.ErrorKind)).Inc()
	r.Duration.WithLabelValues(op).Observe(event.Duration.Seconds())

	if event.FromPhase != event.ToPhase {
		r.Transitions.WithLabelValues(event.FromPhase.String(), event.ToPhase.String()).Inc()
	}
	return nil
}
