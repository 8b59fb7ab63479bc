// Package prometrics backs the metric ports with prometheus vectors.
package prometrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuguanpei/vending-machine/internal/observability"
)

// Registry hands out prometheus-backed instruments, registering each metric
// name once.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	reg       prometheus.Registerer
	namespace string
	constant  prometheus.Labels

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New registers on reg (prometheus.DefaultRegisterer when nil). The constant
// labels, e.g. the device id, are attached to every series.
func New(reg prometheus.Registerer, namespace string, constant prometheus.Labels) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		reg:        reg,
		namespace:  namespace,
		constant:   constant,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace, Name: name, Help: help, ConstLabels: r.constant,
		}, labelKeys)
		r.reg.MustRegister(cv)
		r.counters[name] = cv
	}
	return counterVec{cv}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	hv, ok := r.histograms[name]
	if !ok {
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace, Name: name, Help: help, Buckets: buckets, ConstLabels: r.constant,
		}, labelKeys)
		r.reg.MustRegister(hv)
		r.histograms[name] = hv
	}
	return histogramVec{hv}
}

type counterVec struct{ *prometheus.CounterVec }

func (c counterVec) Add(d float64, labels ...observability.Label) {
	c.With(promLabels(labels)).Add(d)
}

type histogramVec struct{ *prometheus.HistogramVec }

func (h histogramVec) Observe(v float64, labels ...observability.Label) {
	h.With(promLabels(labels)).Observe(v)
}

func promLabels(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}

// Standard registers the instruments used across the kiosk and returns them keyed for the telemetry provider.
func Standard(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Calls made to collaborators outside the process.", "peer", "endpoint", "outcome"),
		observability.MDispenseUnits: r.Counter(string(observability.MDispenseUnits),
			"Physical dispense attempts by outcome.", "outcome"),
		observability.MPaymentVerifications: r.Counter(string(observability.MPaymentVerifications),
			"Payment code checks by result.", "result"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Duration of external calls in seconds.", []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60}, "peer", "endpoint"),
	}
	return counters, histograms
}
