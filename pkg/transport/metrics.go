package transport

import (
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/metrics"
)

// MetricsTransport counts requests and requests that failed before any
// HTTP response arrived.
type MetricsTransport struct {
	Base    http.RoundTripper
	Metrics *metrics.Metrics
}

func (t *MetricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Metrics == nil {
		return base.RoundTrip(req)
	}

	t.Metrics.Requests.Add(1)
	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Metrics.TransportFailures.Add(1)
	}
	return resp, err
}
