package datadog

import (
	"reflect"
	"testing"

	"coder/internal/metrics"
)

type recorded struct {
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	counts []recorded
	hists  []recorded
	closed bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.counts = append(f.counts, recorded{name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.hists = append(f.hists, recorded{name, value, tags})
	return nil
}

func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("expected error for empty Addr")
	}
}

func TestBackendForwardsWithTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"job": "r1", "action": "deleted noise"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "topics/split"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(fc.counts) != 1 || fc.counts[0].value != 3 {
		t.Fatalf("counts = %#v", fc.counts)
	}
	wantTags := []string{"action:deleted noise", "job:r1"}
	if !reflect.DeepEqual(fc.counts[0].tags, wantTags) {
		t.Fatalf("tags = %v, want %v", fc.counts[0].tags, wantTags)
	}
	if len(fc.hists) != 1 || fc.hists[0].name != metrics.StepDuration {
		t.Fatalf("hists = %#v", fc.hists)
	}
	if !fc.closed {
		t.Fatalf("Flush did not close the client")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
