package transport

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/NicolasHaas/cliniclink/pkg/metrics"
	"github.com/NicolasHaas/cliniclink/pkg/session"
)

// Config holds the timeouts of the REST client.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // time to first response byte
	RequestTimeout time.Duration // whole exchange including the body
}

// DefaultConfig mirrors the 30 second connect/read/write budget of the mobile client.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    30 * time.Second,
		RequestTimeout: 90 * time.Second,
	}
}

// NewHTTPClient chains logging, metrics and auth around a fresh http.Transport.
// m may be nil.
func NewHTTPClient(cfg Config, sessions session.Reader, m *metrics.Metrics) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	var rt http.RoundTripper = NewAuthTransport(base, sessions)
	rt = &MetricsTransport{Base: rt, Metrics: m}
	rt = &LoggingTransport{Base: rt, Logger: slog.Default().With("component", "http")}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.RequestTimeout,
	}
}
