package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuguanpei/vending-machine/internal/observability"
)

type countingCounter struct{ total float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.total += d }

func TestProviderResolvesRegisteredInstruments(t *testing.T) {
	units := &countingCounter{}
	p := New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MDispenseUnits: units,
		observability.MHTTPRequests:  nil,
	}, nil)

	p.Metrics().Counter(observability.MDispenseUnits).Add(2)
	p.Metrics().Counter(observability.MHTTPRequests).Add(1)
	p.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.5)

	assert.Equal(t, 2.0, units.total)
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Logger())
}
