package state

import (
	"context"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
)

// Instrumented wraps a Backend and records pkg/metrics counters and
// latency histograms for its core operations (get, set, delete, list,
// clear_namespace), applied at the storage boundary so every Backend
// implementation gets it for free instead of duplicating it three times.
type Instrumented struct {
	Backend
}

// Instrument wraps backend with metrics recording. Call sites that
// need the underlying concrete type (e.g. Redis.Close) should keep
// their own reference to backend and only hand the Instrumented
// wrapper to components that only need the Backend interface.
func Instrument(backend Backend) *Instrumented {
	return &Instrumented{Backend: backend}
}

func observe(op, namespace string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StateOpsTotal.WithLabelValues(op, namespace, outcome).Inc()
	metrics.StateOpDuration.WithLabelValues(op, namespace).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Get(ctx context.Context, namespace, key string) (interface{}, bool, error) {
	start := time.Now()
	value, found, err := i.Backend.Get(ctx, namespace, key)
	observe("get", namespace, start, err)
	return value, found, err
}

func (i *Instrumented) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := i.Backend.Set(ctx, namespace, key, value, ttl)
	observe("set", namespace, start, err)
	return err
}

func (i *Instrumented) Delete(ctx context.Context, namespace, key string) (bool, error) {
	start := time.Now()
	deleted, err := i.Backend.Delete(ctx, namespace, key)
	observe("delete", namespace, start, err)
	return deleted, err
}

func (i *Instrumented) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := i.Backend.List(ctx, namespace, pattern)
	observe("list", namespace, start, err)
	return keys, err
}

func (i *Instrumented) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	start := time.Now()
	removed, err := i.Backend.ClearNamespace(ctx, namespace)
	observe("clear_namespace", namespace, start, err)
	return removed, err
}
