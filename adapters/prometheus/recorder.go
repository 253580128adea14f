// Package prometheus exports core.MetricsRecorder samples as Prometheus
// counters and histograms.
package prometheus

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-authsession/core"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "authsession"

type Option func(*Recorder)

// WithNamespace overrides the metric namespace prefix.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = SanitizeName(namespace)
	}
}

// WithBuckets sets the histogram buckets used for every histogram.
func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder registers one vector per metric name on first use. The label set
// of a metric is fixed by its first sample; later samples missing a label
// report it empty and extra tags are dropped.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
	failures   int
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	r := &Recorder{
		registerer: registerer,
		namespace:  defaultNamespace,
		buckets:    []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
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
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry := r.histogram(name, tags)
	if entry == nil {
		return
	}
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Observe(value)
}

// RegistrationFailures counts vectors the registerer refused.
func (r *Recorder) RegistrationFailures() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func (r *Recorder) counter(name string, tags map[string]string) *counterEntry {
	metric := r.metricName(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[metric]; ok {
		return entry
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric,
		Help: "authsession counter " + strings.TrimSpace(name),
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := alreadyRegistered[*prometheus.CounterVec](err)
		if !ok {
			r.failures++
			return nil
		}
		vec = existing
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[metric] = entry
	return entry
}

func (r *Recorder) histogram(name string, tags map[string]string) *histogramEntry {
	metric := r.metricName(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[metric]; ok {
		return entry
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metric,
		Help:    "authsession histogram " + strings.TrimSpace(name),
		Buckets: r.buckets,
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := alreadyRegistered[*prometheus.HistogramVec](err)
		if !ok {
			r.failures++
			return nil
		}
		vec = existing
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[metric] = entry
	return entry
}

// metricName maps "authsession.transition.total" to
// "authsession_transition_total", adding the namespace when absent.
func (r *Recorder) metricName(name string) string {
	metric := SanitizeName(name)
	if metric == "" {
		return ""
	}
	if r.namespace != "" && metric != r.namespace && !strings.HasPrefix(metric, r.namespace+"_") {
		metric = r.namespace + "_" + metric
	}
	return metric
}

// SanitizeName rewrites name into the Prometheus metric and label alphabet.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for key := range tags {
		label := strings.ReplaceAll(SanitizeName(key), ":", "_")
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		names = append(names, label)
	}
	slices.Sort(names)
	return names
}

func labelValues(labels []string, tags map[string]string) []string {
	sanitized := make(map[string]string, len(tags))
	for key, value := range tags {
		sanitized[strings.ReplaceAll(SanitizeName(key), ":", "_")] = value
	}
	values := make([]string, len(labels))
	for i, label := range labels {
		values[i] = sanitized[label]
	}
	return values
}

func alreadyRegistered[T prometheus.Collector](err error) (T, bool) {
	var zero T
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return zero, false
	}
	existing, ok := are.ExistingCollector.(T)
	return existing, ok
}

var _ core.MetricsRecorder = (*Recorder)(nil)
