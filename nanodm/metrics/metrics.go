// Package metrics decorates a storage.Adapter with Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

type adapterMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newAdapterMetrics(reg prometheus.Registerer) (*adapterMetrics, error) {
	m := &adapterMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanodm",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total storage operations by type, collection and status.",
		}, []string{"operation", "collection", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nanodm",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metrics: already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("metrics: register: %w", err)
	}
	return nil
}

// Adapter records every call of the wrapped adapter. Behavior and errors are
// passed through unchanged.
type Adapter struct {
	inner   storage.Adapter
	metrics *adapterMetrics
}

var _ storage.Adapter = (*Adapter)(nil)

// Instrument wraps inner, registering the collectors on reg
// (prometheus.DefaultRegisterer when nil). Wrapping several adapters on the
// same registerer shares the collectors.
func Instrument(inner storage.Adapter, reg prometheus.Registerer) (*Adapter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m, err := newAdapterMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Adapter{inner: inner, metrics: m}, nil
}

// Unwrap returns the wrapped adapter
func (a *Adapter) Unwrap() storage.Adapter { return a.inner }

func (a *Adapter) observe(op, collection string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.operations.WithLabelValues(op, collection, status).Inc()
	a.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (a *Adapter) Save(ctx context.Context, collection string, id any, values types.Record) (any, error) {
	start := time.Now()
	out, err := a.inner.Save(ctx, collection, id, values)
	a.observe("save", collection, start, err)
	return out, err
}

func (a *Adapter) Delete(ctx context.Context, collection string, id any) (int, error) {
	start := time.Now()
	n, err := a.inner.Delete(ctx, collection, id)
	a.observe("delete", collection, start, err)
	return n, err
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, query types.Query) (int, error) {
	start := time.Now()
	n, err := a.inner.DeleteOne(ctx, collection, query)
	a.observe("delete_one", collection, start, err)
	return n, err
}

func (a *Adapter) DeleteMany(ctx context.Context, collection string, query types.Query) (int, error) {
	start := time.Now()
	n, err := a.inner.DeleteMany(ctx, collection, query)
	a.observe("delete_many", collection, start, err)
	return n, err
}

func (a *Adapter) FindOne(ctx context.Context, collection string, query types.Query) (types.Record, error) {
	start := time.Now()
	r, err := a.inner.FindOne(ctx, collection, query)
	a.observe("find_one", collection, start, err)
	return r, err
}

func (a *Adapter) Find(ctx context.Context, collection string, query types.Query, opts types.FindOptions) ([]types.Record, error) {
	start := time.Now()
	rs, err := a.inner.Find(ctx, collection, query, opts)
	a.observe("find", collection, start, err)
	return rs, err
}

func (a *Adapter) FindOneAndUpdate(ctx context.Context, collection string, query types.Query, values types.Record, opts types.UpdateOptions) (types.Record, error) {
	start := time.Now()
	r, err := a.inner.FindOneAndUpdate(ctx, collection, query, values, opts)
	a.observe("find_one_and_update", collection, start, err)
	return r, err
}

func (a *Adapter) FindOneAndDelete(ctx context.Context, collection string, query types.Query) (int, error) {
	start := time.Now()
	n, err := a.inner.FindOneAndDelete(ctx, collection, query)
	a.observe("find_one_and_delete", collection, start, err)
	return n, err
}

func (a *Adapter) Count(ctx context.Context, collection string, query types.Query) (int, error) {
	start := time.Now()
	n, err := a.inner.Count(ctx, collection, query)
	a.observe("count", collection, start, err)
	return n, err
}

func (a *Adapter) CreateIndex(ctx context.Context, collection, field string, opts types.IndexOptions) error {
	start := time.Now()
	err := a.inner.CreateIndex(ctx, collection, field, opts)
	a.observe("create_index", collection, start, err)
	return err
}

func (a *Adapter) ClearCollection(ctx context.Context, collection string) error {
	start := time.Now()
	err := a.inner.ClearCollection(ctx, collection)
	a.observe("clear_collection", collection, start, err)
	return err
}

func (a *Adapter) DropDatabase(ctx context.Context) error {
	start := time.Now()
	err := a.inner.DropDatabase(ctx)
	a.observe("drop_database", "", start, err)
	return err
}

func (a *Adapter) IsNativeID(v any) bool { return a.inner.IsNativeID(v) }

func (a *Adapter) CanonicalID(id any) string { return a.inner.CanonicalID(id) }

func (a *Adapter) NativeIDType() string { return a.inner.NativeIDType() }

func (a *Adapter) Close() error { return a.inner.Close() }
