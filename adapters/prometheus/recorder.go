// Package prometheus exports Tripline metrics through client_golang.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-tripline/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets covers request and job durations in milliseconds.
var DefaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder implements core.MetricsRecorder. Collectors are created on first
// use and their label names are fixed by that first sample; later samples
// missing a label report it as "" and extra labels are dropped.
type Recorder struct {
	registerer prom.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
	errs       []error
	failed     map[string]bool
}

type counterEntry struct {
	vec    *prom.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prom.HistogramVec
	labels []string
}

type Option func(*Recorder)

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(registerer prom.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		buckets:    DefaultDurationBuckets,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
		failed:     map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	entry := r.counter(name, tags)
	if entry == nil {
		return
	}
	counter, err := entry.vec.GetMetricWithLabelValues(labelValues(entry.labels, tags)...)
	if err != nil {
		r.sampleFailed(name, err)
		return
	}
	counter.Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry := r.histogram(name, tags)
	if entry == nil {
		return
	}
	observer, err := entry.vec.GetMetricWithLabelValues(labelValues(entry.labels, tags)...)
	if err != nil {
		r.sampleFailed(name, err)
		return
	}
	observer.Observe(value)
}

// Errors returns registration failures and the first sample failure of each
// metric. A metric that fails is silently skipped afterwards.
func (r *Recorder) Errors() []error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Recorder) sampleFailed(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed[name] {
		return
	}
	r.failed[name] = true
	r.errs = append(r.errs, fmt.Errorf("prometheus: record %s: %w", name, err))
}

func (r *Recorder) counter(name string, tags map[string]string) *counterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[name]; ok {
		return entry
	}
	labels := labelNames(tags)
	vec := prom.NewCounterVec(prom.CounterOpts{
		Name: MetricName(name) + "_total",
		Help: fmt.Sprintf("Tripline counter %s.", name),
	}, labels)
	entry := &counterEntry{vec: vec, labels: labels}
	if err := r.registerer.Register(vec); err != nil {
		entry = r.reuseCounter(err, vec, labels)
		if entry == nil {
			r.errs = append(r.errs, fmt.Errorf("prometheus: register %s: %w", name, err))
		}
	}
	r.counters[name] = entry
	return entry
}

func (r *Recorder) histogram(name string, tags map[string]string) *histogramEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[name]; ok {
		return entry
	}
	labels := labelNames(tags)
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    MetricName(name),
		Help:    fmt.Sprintf("Tripline histogram %s.", name),
		Buckets: r.buckets,
	}, labels)
	entry := &histogramEntry{vec: vec, labels: labels}
	if err := r.registerer.Register(vec); err != nil {
		entry = r.reuseHistogram(err, vec, labels)
		if entry == nil {
			r.errs = append(r.errs, fmt.Errorf("prometheus: register %s: %w", name, err))
		}
	}
	r.histograms[name] = entry
	return entry
}

// Two recorders sharing a registerer share collectors, but only when the
// registered collector describes exactly the same metric and label names.
func (r *Recorder) reuseCounter(err error, fresh prom.Collector, labels []string) *counterEntry {
	var already prom.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return nil
	}
	vec, ok := already.ExistingCollector.(*prom.CounterVec)
	if !ok || !sameDescriptors(vec, fresh) {
		return nil
	}
	return &counterEntry{vec: vec, labels: labels}
}

func (r *Recorder) reuseHistogram(err error, fresh prom.Collector, labels []string) *histogramEntry {
	var already prom.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return nil
	}
	vec, ok := already.ExistingCollector.(*prom.HistogramVec)
	if !ok || !sameDescriptors(vec, fresh) {
		return nil
	}
	return &histogramEntry{vec: vec, labels: labels}
}

func sameDescriptors(a, b prom.Collector) bool {
	left, right := describe(a), describe(b)
	return slices.Equal(left, right)
}

func describe(collector prom.Collector) []string {
	ch := make(chan *prom.Desc, 4)
	go func() {
		collector.Describe(ch)
		close(ch)
	}()
	var out []string
	for desc := range ch {
		out = append(out, desc.String())
	}
	sort.Strings(out)
	return out
}

// MetricName maps a dotted Tripline metric name to a Prometheus name, for
// example "tripline.client.duration_ms" to "tripline_client_duration_ms".
func MetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "tripline_" + out
	}
	return out
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		names = append(names, MetricName(key))
	}
	sort.Strings(names)
	return names
}

func labelValues(labels []string, tags map[string]string) []string {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[MetricName(key)] = value
	}
	values := make([]string, len(labels))
	for i, label := range labels {
		values[i] = normalized[label]
	}
	return values
}

var _ core.MetricsRecorder = (*Recorder)(nil)
