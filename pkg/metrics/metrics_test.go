package metrics

import (
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("flushes_total", "Step generation flushes")
	labels := Labels{"family": "input_shaper"}
	c.Inc(labels)
	c.Add(labels, 2)
	if got := c.Get(labels); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}
	if got := c.Get(Labels{"family": "smooth_axis"}); got != 0 {
		t.Errorf("unrelated label set = %d, want 0", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("scan_window_seconds", "Current scan window")
	g.Set(nil, 0.02)
	if got := g.Get(nil); got != 0.02 {
		t.Errorf("gauge = %v, want 0.02", got)
	}
	g.Set(nil, 0.01)
	if got := g.Get(nil); got != 0.01 {
		t.Errorf("gauge after update = %v, want 0.01", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram("flush_duration_seconds", "Flush drain time",
		[]float64{0.001, 0.01, 0.1})
	h.Observe(nil, 0.005)
	h.Observe(nil, 0.05)
	if got := h.Count(nil); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	for _, want := range []string{
		`flush_duration_seconds_bucket{le="0.01"} 1`,
		`flush_duration_seconds_bucket{le="0.1"} 2`,
		`flush_duration_seconds_bucket{le="+Inf"} 2`,
		"flush_duration_seconds_count 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("histogram output missing %q:\n%s", want, out)
		}
	}
}

func TestRegistryGather(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("reconfigurations_total", "Applied reconfigurations")
	r.MustRegister(c)
	if err := r.Register(NewCounter("reconfigurations_total", "dup")); err == nil {
		t.Error("duplicate metric name should fail")
	}
	c.Inc(Labels{"family": "smooth_axis"})
	out := r.Gather()
	if !strings.Contains(out, "# TYPE reconfigurations_total counter") {
		t.Errorf("missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, `reconfigurations_total{family="smooth_axis"} 1`) {
		t.Errorf("missing sample line:\n%s", out)
	}
}
