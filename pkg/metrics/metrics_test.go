package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserveLoad(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.ObserveLoad("about", 10*time.Millisecond, nil)
	c.ObserveLoad("about", 20*time.Millisecond, errors.New("boom"))
	c.ObserveLoad("about", 5*time.Millisecond, nil)

	if got := metricCounterValue(t, c.pageLoads.WithLabelValues("about", "success")); got != 2 {
		t.Errorf("success loads = %v, want 2", got)
	}
	if got := metricCounterValue(t, c.pageLoads.WithLabelValues("about", "error")); got != 1 {
		t.Errorf("error loads = %v, want 1", got)
	}
	if got := metricHistogramCount(t, c.pageLoadSeconds.WithLabelValues("about")); got != 3 {
		t.Errorf("duration samples = %v, want 3", got)
	}
}

func TestGauges(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.LoadingChanged(true)
	c.LoadingChanged(true)
	c.LoadingChanged(false)
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()

	if got := metricGaugeValue(t, c.loadingSessions); got != 1 {
		t.Errorf("loading sessions = %v, want 1", got)
	}
	if got := metricGaugeValue(t, c.liveSessions); got != 1 {
		t.Errorf("live sessions = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	c.ObserveNavigation("deferred")
	c.ObservePageView("")
	c.ObservePageView("Home")
	c.ObserveRender(404, time.Millisecond)

	if got := metricCounterValue(t, c.navigations.WithLabelValues("deferred")); got != 1 {
		t.Errorf("navigations = %v", got)
	}
	if got := metricCounterValue(t, c.pageViews.WithLabelValues("unmatched")); got != 1 {
		t.Errorf("unmatched page views = %v", got)
	}
	if got := metricCounterValue(t, c.renders.WithLabelValues("404")); got != 1 {
		t.Errorf("404 renders = %v", got)
	}
	if got := metricHistogramCount(t, c.renderSeconds); got != 1 {
		t.Errorf("render samples = %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveLoad("x", time.Second, nil)
	c.ObserveNavigation("x")
	c.LoadingChanged(true)
	c.SessionOpened()
	c.SessionClosed()
	c.ObservePageView("x")
	c.ObserveRender(200, time.Second)
}

func TestRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithConstLabels(prometheus.Labels{"app": "demo"}))
	c.ObservePageView("Home")

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "splitroute_page_views_total" {
			found = true
		}
	}
	if !found {
		t.Error("page views metric not registered")
	}
}

func TestCustomBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithBuckets([]float64{0.01, 0.1}))
	c.ObserveRender(200, 50*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "splitroute_render_duration_seconds" {
			continue
		}
		buckets := f.GetMetric()[0].GetHistogram().GetBucket()
		if len(buckets) != 2 {
			t.Fatalf("buckets = %d, want 2", len(buckets))
		}
		if got := buckets[1].GetCumulativeCount(); got != 1 {
			t.Errorf("0.1 bucket count = %d, want 1", got)
		}
		return
	}
	t.Error("render duration histogram not registered")
}
