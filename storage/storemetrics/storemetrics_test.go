package storemetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"xdao.co/overlay/address"
	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/localfs"
	"xdao.co/overlay/storage/testkit"
)

func newWrapped(t *testing.T) (*Store, *Metrics) {
	t.Helper()
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	m := NewMetrics("overlay", prometheus.NewRegistry())
	return Wrap(backend, m), m
}

func TestStoreMetrics_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		s, _ := newWrapped(t)
		return s
	})
}

func TestStoreMetrics_Counts(t *testing.T) {
	s, m := newWrapped(t)

	data := []byte("count me")
	a, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get(a); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(address.FullAddress()); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: %v", err)
	}
	s.Has(a)
	s.Has(address.FullAddress())

	checks := []struct {
		op, result string
		want       float64
	}{
		{"put", "ok", 1},
		{"get", "ok", 1},
		{"get", "not_found", 1},
		{"has", "hit", 1},
		{"has", "miss", 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(m.Ops.WithLabelValues(c.op, c.result)); got != c.want {
			t.Fatalf("ops{%s,%s} = %v want %v", c.op, c.result, got, c.want)
		}
	}
	if got := testutil.ToFloat64(m.Bytes.WithLabelValues("put")); got != float64(len(data)) {
		t.Fatalf("bytes{put} = %v", got)
	}
	if got := testutil.ToFloat64(m.Bytes.WithLabelValues("get")); got != float64(len(data)) {
		t.Fatalf("bytes{get} = %v", got)
	}
}
