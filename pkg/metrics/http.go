package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Handler writes all metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uptime := time.Since(m.startTime).Seconds()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
		write := func(name, help, mtype string, value int64) {
			_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
			_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
		}

		_, _ = fmt.Fprintf(w, "# HELP cliniclink_uptime_seconds Client uptime in seconds.\n")
		_, _ = fmt.Fprintf(w, "# TYPE cliniclink_uptime_seconds gauge\n")
		_, _ = fmt.Fprintf(w, "cliniclink_uptime_seconds %f\n", uptime)

		write("cliniclink_http_requests_total", "REST requests sent.", "counter", m.Requests.Load())
		write("cliniclink_http_transport_failures_total", "REST requests without any HTTP response.", "counter",
			m.TransportFailures.Load())
		write("cliniclink_api_network_errors_total", "Calls classified as network unavailable.", "counter",
			m.NetworkErrors.Load())
		write("cliniclink_api_client_errors_total", "Calls answered with 4xx.", "counter", m.ClientErrors.Load())
		write("cliniclink_api_server_errors_total", "Calls answered with 5xx or other non-2xx.", "counter",
			m.ServerErrors.Load())
		write("cliniclink_api_business_errors_total", "Envelopes with success=false.", "counter",
			m.BusinessErrors.Load())
		write("cliniclink_api_protocol_errors_total", "2xx bodies that were not a valid envelope.", "counter",
			m.ProtocolErrors.Load())

		write("cliniclink_realtime_connects_total", "Realtime sockets that reached Connected.", "counter",
			m.ChannelConnects.Load())
		write("cliniclink_realtime_failures_total", "Realtime socket failures.", "counter", m.ChannelFailures.Load())
		write("cliniclink_realtime_reconnects_total", "Scheduled reconnect attempts that fired.", "counter",
			m.ChannelReconnects.Load())
		write("cliniclink_realtime_events_total", "Server events dispatched to subscribers.", "counter",
			m.EventsDispatched.Load())
		write("cliniclink_realtime_events_dropped_total", "Malformed inbound messages dropped.", "counter",
			m.EventsDropped.Load())
		write("cliniclink_realtime_messages_out_total", "Messages sent on the realtime channel.", "counter",
			m.ChannelMessagesOut.Load())
	})
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled.
// An empty addr disables the endpoint.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
