package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/NicolasHaas/cliniclink/pkg/metrics"
	"github.com/NicolasHaas/cliniclink/pkg/version"
)

// maxBodySize caps how much of a response is read before decoding.
const maxBodySize = 4 << 20

// Client sends requests relative to the clinic API base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewClient parses baseURL (for example "https://clinic.example/api/").
// httpClient is normally built by transport.NewHTTPClient; m may be nil.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:    u,
		http:    httpClient,
		metrics: m,
		log:     slog.Default().With("component", "api"),
	}, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Result is the outcome of one call: exactly one of Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Kind is KindNone on success, the error's Kind otherwise.
func (r Result[T]) Kind() Kind {
	if r.Err == nil {
		return KindNone
	}
	return KindOf(r.Err)
}

// Do performs the request and unwraps the envelope into T.
// Every failure is an *Error; path is relative to the base URL and may carry a query.
func Do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return zero, c.fail(method, path, newRequestError(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, c.fail(method, path, newNetworkError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies are never trusted for the message, and a body that
		// fails to arrive does not change the classification.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return zero, c.fail(method, path, Classify(resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return zero, c.fail(method, path, newNetworkError(err))
	}

	out, err := decodeEnvelope[T](resp.StatusCode, raw)
	if err != nil {
		apiErr, ok := err.(*Error)
		if !ok {
			apiErr = newProtocolError(resp.StatusCode, err)
		}
		return zero, c.fail(method, path, apiErr)
	}
	return out, nil
}

// Call is Do folded into a single Result.
func Call[T any](ctx context.Context, c *Client, method, path string, body any) Result[T] {
	v, err := Do[T](ctx, c, method, path, body)
	return Result[T]{Value: v, Err: err}
}

// Go runs the call on its own goroutine. The channel receives exactly one
// Result and is then closed.
func Go[T any](ctx context.Context, c *Client, method, path string, body any) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		ch <- Call[T](ctx, c, method, path, body)
	}()
	return ch
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) fail(method, path string, e *Error) *Error {
	if m := c.metrics; m != nil {
		switch e.Kind {
		case KindNetwork:
			m.NetworkErrors.Add(1)
		case KindClient:
			m.ClientErrors.Add(1)
		case KindServer:
			m.ServerErrors.Add(1)
		case KindBusiness:
			m.BusinessErrors.Add(1)
		case KindProtocol:
			m.ProtocolErrors.Add(1)
		}
	}
	c.log.Debug("call failed",
		"method", method,
		"path", path,
		"kind", e.Kind.String(),
		"status", e.Status,
		"cause", e.cause,
	)
	return e
}

// withQuery appends non-empty query values to path.
func withQuery(path string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func segment(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}
