// Package observability assembles the telemetry provider handed to every component.
package observability

import (
	"github.com/yuguanpei/vending-machine/internal/observability"
)

// Provider binds one tracer, one logger and the registered metric instruments.
// It is its own Metrics: a key that was never registered resolves to a no-op
// instrument, so components can ask for anything.
type Provider struct {
	tracer     observability.Tracer
	logger     observability.Logger
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

var (
	_ observability.Observability = (*Provider)(nil)
	_ observability.Metrics       = (*Provider)(nil)
)

// New copies the instrument maps; nil parts fall back to no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) *Provider {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	p := &Provider{
		tracer:     tracer,
		logger:     logger,
		counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
	}
	for k, c := range counters {
		if c != nil {
			p.counters[k] = c
		}
	}
	for k, h := range histograms {
		if h != nil {
			p.histograms[k] = h
		}
	}
	return p
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p }

func (p *Provider) Counter(key observability.MetricKey) observability.Counter {
	if c, ok := p.counters[key]; ok {
		return c
	}
	return observability.NopCounter()
}

func (p *Provider) Histogram(key observability.MetricKey) observability.Histogram {
	if h, ok := p.histograms[key]; ok {
		return h
	}
	return observability.NopHistogram()
}
