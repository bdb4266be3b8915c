package prometheus

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-tripline/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecorderCountsClientRequests(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	recorder.IncCounter(ctx, core.MetricClientRequests, 1, map[string]string{"operation": "evaluate", "status": "200"})
	recorder.IncCounter(ctx, core.MetricClientRequests, 2, map[string]string{"operation": "evaluate", "status": "200"})
	recorder.IncCounter(ctx, core.MetricClientRequests, 1, map[string]string{"operation": "screen", "status": "429"})

	expected := `
# HELP tripline_client_requests_total Tripline counter tripline.client.requests.
# TYPE tripline_client_requests_total counter
tripline_client_requests_total{operation="evaluate",status="200"} 3
tripline_client_requests_total{operation="screen",status="429"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "tripline_client_requests_total"); err != nil {
		t.Fatalf("unexpected counter output: %v", err)
	}
}

func TestRecorderObservesDurations(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry, WithBuckets(10, 100))
	ctx := context.Background()

	recorder.ObserveHistogram(ctx, core.MetricClientDurationMS, 42, map[string]string{"operation": "evaluate", "status": "200"})
	recorder.ObserveHistogram(ctx, core.MetricClientDurationMS, 7, map[string]string{"operation": "evaluate", "status": "200"})

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "tripline_client_duration_ms" && len(family.GetMetric()) == 1 {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatalf("expected tripline_client_duration_ms histogram")
	}
	if histogram.GetSampleCount() != 2 || histogram.GetSampleSum() != 49 {
		t.Fatalf("unexpected histogram count=%d sum=%v", histogram.GetSampleCount(), histogram.GetSampleSum())
	}
	if buckets := histogram.GetBucket(); len(buckets) != 2 || buckets[0].GetCumulativeCount() != 1 {
		t.Fatalf("unexpected buckets: %#v", buckets)
	}
}

func TestRecorderKeepsFirstLabelSet(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, map[string]string{"reason": "mismatch"})
	recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, map[string]string{"reason": "mismatch", "extra": "dropped"})
	recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, nil)

	if got := testutil.ToFloat64(recorder.counters[core.MetricWebhookRejected].vec.WithLabelValues("mismatch")); got != 2 {
		t.Fatalf("expected two mismatch samples, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.counters[core.MetricWebhookRejected].vec.WithLabelValues("")); got != 1 {
		t.Fatalf("expected one unlabeled sample, got %v", got)
	}
}

func TestRecordersShareRegisteredCollectors(t *testing.T) {
	registry := prom.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	ctx := context.Background()
	tags := map[string]string{"event": "risk.critical"}

	first.IncCounter(ctx, core.MetricWebhookVerified, 1, tags)
	second.IncCounter(ctx, core.MetricWebhookVerified, 1, tags)

	if errs := second.Errors(); len(errs) != 0 {
		t.Fatalf("expected shared collector, got errors %v", errs)
	}
	if got := testutil.ToFloat64(first.counters[core.MetricWebhookVerified].vec.WithLabelValues("risk.critical")); got != 2 {
		t.Fatalf("expected shared count of 2, got %v", got)
	}
}

// alreadyRegisteredRegisterer reports every collector as already registered
// by existing, the way wrapping registerers can.
type alreadyRegisteredRegisterer struct {
	existing prom.Collector
}

func (r alreadyRegisteredRegisterer) Register(c prom.Collector) error {
	return prom.AlreadyRegisteredError{ExistingCollector: r.existing, NewCollector: c}
}

func (r alreadyRegisteredRegisterer) MustRegister(...prom.Collector) {}

func (r alreadyRegisteredRegisterer) Unregister(prom.Collector) bool { return false }

func TestRecorderRejectsCollectorWithDifferentLabels(t *testing.T) {
	ctx := context.Background()
	tags := map[string]string{"reason": "mismatch"}

	t.Run("counter", func(t *testing.T) {
		existing := prom.NewCounterVec(prom.CounterOpts{
			Name: MetricName(core.MetricWebhookRejected) + "_total",
			Help: "Tripline counter " + core.MetricWebhookRejected + ".",
		}, []string{"event", "status"})
		recorder := NewRecorder(alreadyRegisteredRegisterer{existing: existing})

		recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, tags)
		recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, tags)

		if errs := recorder.Errors(); len(errs) != 1 {
			t.Fatalf("expected one registration error, got %v", errs)
		}
	})

	t.Run("histogram", func(t *testing.T) {
		existing := prom.NewHistogramVec(prom.HistogramOpts{
			Name:    MetricName(core.MetricClientDurationMS),
			Help:    "Tripline histogram " + core.MetricClientDurationMS + ".",
			Buckets: DefaultDurationBuckets,
		}, []string{"operation", "status"})
		recorder := NewRecorder(alreadyRegisteredRegisterer{existing: existing})

		recorder.ObserveHistogram(ctx, core.MetricClientDurationMS, 12, tags)

		if errs := recorder.Errors(); len(errs) != 1 {
			t.Fatalf("expected one registration error, got %v", errs)
		}
	})

	t.Run("matching labels are shared", func(t *testing.T) {
		existing := prom.NewCounterVec(prom.CounterOpts{
			Name: MetricName(core.MetricWebhookRejected) + "_total",
			Help: "Tripline counter " + core.MetricWebhookRejected + ".",
		}, []string{"reason"})
		recorder := NewRecorder(alreadyRegisteredRegisterer{existing: existing})

		recorder.IncCounter(ctx, core.MetricWebhookRejected, 1, tags)

		if errs := recorder.Errors(); len(errs) != 0 {
			t.Fatalf("expected collector reuse, got %v", errs)
		}
		if got := testutil.ToFloat64(existing.WithLabelValues("mismatch")); got != 1 {
			t.Fatalf("expected sample on the existing collector, got %v", got)
		}
	})

	t.Run("registry", func(t *testing.T) {
		registry := prom.NewRegistry()
		first := NewRecorder(registry)
		second := NewRecorder(registry)

		first.IncCounter(ctx, core.MetricWebhookRejected, 1, map[string]string{"event": "risk.critical", "reason": "mismatch"})
		second.IncCounter(ctx, core.MetricWebhookRejected, 1, tags)

		if errs := second.Errors(); len(errs) != 1 {
			t.Fatalf("expected the second label set to be refused, got %v", errs)
		}
	})
}

func TestMetricName(t *testing.T) {
	cases := map[string]string{
		"tripline.client.duration_ms": "tripline_client_duration_ms",
		"Tripline.Webhook-Verified":   "tripline_webhook_verified",
		"9lives":                      "tripline_9lives",
	}
	for in, want := range cases {
		if got := MetricName(in); got != want {
			t.Fatalf("MetricName(%q) = %q, want %q", in, got, want)
		}
	}
}
