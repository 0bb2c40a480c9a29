package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stevemurr/tinybase/schema"
)

const (
	namespace = "tinybase"
	subsystem = "store"
)

// Instrumented wraps a Store and records Prometheus metrics for every operation.
type Instrumented struct {
	Store

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	backend    string
}

// statser is implemented by stores backed by a database/sql pool.
type statser interface {
	Stats() sql.DBStats
}

// NewInstrumented returns s wrapped with metrics labeled with the backend name.
// The result must be registered to be exported.
func NewInstrumented(s Store, backend string) *Instrumented {
	return &Instrumented{
		Store:   s,
		backend: backend,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "operations_total",
				Help:        "Total number of store operations by result.",
				ConstLabels: prometheus.Labels{"backend": backend},
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "operation_duration_seconds",
				Help:        "Store operation latency.",
				ConstLabels: prometheus.Labels{"backend": backend},
				Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 9),
			},
			[]string{"operation"},
		),
	}
}

// Describe implements prometheus.Collector.
func (i *Instrumented) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(i, ch)
}

// Collect implements prometheus.Collector.
func (i *Instrumented) Collect(ch chan<- prometheus.Metric) {
	i.operations.Collect(ch)
	i.duration.Collect(ch)

	st, ok := i.Store.(statser)
	if !ok {
		return
	}
	stats := st.Stats()
	labels := prometheus.Labels{"backend": i.backend}
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "connections_open"),
			"The number of established connections both in use and idle.",
			nil, labels,
		),
		prometheus.GaugeValue,
		float64(stats.OpenConnections),
	)
	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "connections_in_use"),
			"The number of connections currently in use.",
			nil, labels,
		),
		prometheus.GaugeValue,
		float64(stats.InUse),
	)
}

func result(err error) string {
	var (
		engine *EngineError
		ser    *SerializationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &ser):
		return "serialization_error"
	case errors.As(err, &engine):
		return "engine_error"
	default:
		return "error"
	}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	i.operations.WithLabelValues(op, result(err)).Inc()
}

func (i *Instrumented) CreateCollection(ctx context.Context, name string, s *schema.Schema) (id int64, err error) {
	defer func(start time.Time) { i.observe("create_collection", start, err) }(time.Now())
	return i.Store.CreateCollection(ctx, name, s)
}

func (i *Instrumented) GetCollection(ctx context.Context, id int64) (c *Collection, err error) {
	defer func(start time.Time) { i.observe("get_collection", start, err) }(time.Now())
	return i.Store.GetCollection(ctx, id)
}

func (i *Instrumented) ListCollections(ctx context.Context) (cs []*Collection, err error) {
	defer func(start time.Time) { i.observe("list_collections", start, err) }(time.Now())
	return i.Store.ListCollections(ctx)
}

func (i *Instrumented) UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (c *Collection, err error) {
	defer func(start time.Time) { i.observe("update_collection", start, err) }(time.Now())
	return i.Store.UpdateCollection(ctx, id, upd)
}

func (i *Instrumented) DeleteCollection(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { i.observe("delete_collection", start, err) }(time.Now())
	return i.Store.DeleteCollection(ctx, id)
}

func (i *Instrumented) CreateRecord(ctx context.Context, collectionID int64, data any) (id int64, err error) {
	defer func(start time.Time) { i.observe("create_record", start, err) }(time.Now())
	return i.Store.CreateRecord(ctx, collectionID, data)
}

func (i *Instrumented) ListRecords(ctx context.Context, collectionID int64) (rs []*Record, err error) {
	defer func(start time.Time) { i.observe("list_records", start, err) }(time.Now())
	return i.Store.ListRecords(ctx, collectionID)
}

func (i *Instrumented) GetRecord(ctx context.Context, collectionID, recordID int64) (r *Record, err error) {
	defer func(start time.Time) { i.observe("get_record", start, err) }(time.Now())
	return i.Store.GetRecord(ctx, collectionID, recordID)
}

func (i *Instrumented) UpdateRecord(ctx context.Context, collectionID, recordID int64, data any) (r *Record, err error) {
	defer func(start time.Time) { i.observe("update_record", start, err) }(time.Now())
	return i.Store.UpdateRecord(ctx, collectionID, recordID, data)
}

func (i *Instrumented) DeleteRecord(ctx context.Context, collectionID, recordID int64) (err error) {
	defer func(start time.Time) { i.observe("delete_record", start, err) }(time.Now())
	return i.Store.DeleteRecord(ctx, collectionID, recordID)
}

// check interfaces
var (
	_ Store                = (*Instrumented)(nil)
	_ prometheus.Collector = (*Instrumented)(nil)
	_ Store                = (*DirectStore)(nil)
	_ Store                = (*SerializedStore)(nil)
	_ Store                = (*MemoryStore)(nil)
	_ Store                = (*JsonFileStore)(nil)
	_ statser              = (*DirectStore)(nil)
	_ statser              = (*SerializedStore)(nil)
)
