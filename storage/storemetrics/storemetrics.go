// Package storemetrics instruments a storage.Store with Prometheus metrics.
package storemetrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"xdao.co/overlay/address"
	"xdao.co/overlay/model"
	"xdao.co/overlay/storage"
)

// Metrics holds the collectors shared by every wrapped store.
type Metrics struct {
	Ops     *prometheus.CounterVec
	Latency *prometheus.HistogramVec
	Bytes   *prometheus.CounterVec
}

// NewMetrics registers the store collectors on reg under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by op and result",
		}, []string{"op", "result"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"op"}),
		Bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_total",
			Help:      "Content bytes moved through the store by op",
		}, []string{"op"}),
	}
}

// Store decorates another store; it changes no results.
type Store struct {
	next storage.Store
	m    *Metrics
}

var _ storage.Store = (*Store)(nil)

func Wrap(next storage.Store, m *Metrics) *Store {
	return &Store{next: next, m: m}
}

func (s *Store) Put(data []byte) (address.Address, error) {
	start := time.Now()
	a, err := s.next.Put(data)
	s.observe("put", start, err)
	if err == nil {
		s.m.Bytes.WithLabelValues("put").Add(float64(len(data)))
	}
	return a, err
}

func (s *Store) Get(a address.Address) ([]byte, error) {
	start := time.Now()
	b, err := s.next.Get(a)
	s.observe("get", start, err)
	if err == nil {
		s.m.Bytes.WithLabelValues("get").Add(float64(len(b)))
	}
	return b, err
}

func (s *Store) Has(a address.Address) bool {
	start := time.Now()
	ok := s.next.Has(a)
	s.m.Latency.WithLabelValues("has").Observe(time.Since(start).Seconds())
	result := "miss"
	if ok {
		result = "hit"
	}
	s.m.Ops.WithLabelValues("has", result).Inc()
	return ok
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.m.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.m.Ops.WithLabelValues(op, result(err)).Inc()
}

// result turns an error into a low-cardinality label value.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := model.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
