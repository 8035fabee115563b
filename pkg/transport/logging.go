package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader correlates client log lines with server logs.
const RequestIDHeader = "X-Request-ID"

// LoggingTransport logs one line per request. Headers and bodies are never
// logged, so credentials stay out of the logs.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := req
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		out = req.Clone(req.Context())
		out.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := t.base().RoundTrip(out)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn("http request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", id,
			"duration", elapsed,
			"err", err,
		)
		return nil, err
	}
	logger.Debug("http request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", id,
		"duration", elapsed,
	)
	return resp, nil
}

func (t *LoggingTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
