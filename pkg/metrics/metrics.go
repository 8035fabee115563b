// Package metrics tracks client runtime statistics for the REST and realtime paths.
package metrics

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks client runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// REST counters
	Requests          atomic.Int64 // requests handed to the transport
	TransportFailures atomic.Int64 // requests that never got an HTTP response
	NetworkErrors     atomic.Int64 // unwrapped results classified as network errors
	ClientErrors      atomic.Int64 // 4xx responses
	ServerErrors      atomic.Int64 // 5xx and other non-2xx responses
	BusinessErrors    atomic.Int64 // envelopes with success=false
	ProtocolErrors    atomic.Int64 // 2xx bodies that were not a valid envelope

	// Realtime counters
	ChannelConnects    atomic.Int64 // sockets that reached Connected
	ChannelFailures    atomic.Int64 // socket failures (dial or read)
	ChannelReconnects  atomic.Int64 // scheduled reconnects that actually fired
	EventsDispatched   atomic.Int64 // typed events handed to subscribers
	EventsDropped      atomic.Int64 // malformed inbound messages
	ChannelMessagesOut atomic.Int64 // messages written by Send
}

// New creates a Metrics instance with the start time set to now.
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Snapshot is a point-in-time view of all metrics as a serializable struct.
type Snapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Requests          int64 `json:"requests"`
	TransportFailures int64 `json:"transport_failures"`
	NetworkErrors     int64 `json:"network_errors"`
	ClientErrors      int64 `json:"client_errors"`
	ServerErrors      int64 `json:"server_errors"`
	BusinessErrors    int64 `json:"business_errors"`
	ProtocolErrors    int64 `json:"protocol_errors"`

	ChannelConnects    int64 `json:"channel_connects"`
	ChannelFailures    int64 `json:"channel_failures"`
	ChannelReconnects  int64 `json:"channel_reconnects"`
	EventsDispatched   int64 `json:"events_dispatched"`
	EventsDropped      int64 `json:"events_dropped"`
	ChannelMessagesOut int64 `json:"channel_messages_out"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	uptime := time.Since(m.startTime)
	return Snapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		Requests:           m.Requests.Load(),
		TransportFailures:  m.TransportFailures.Load(),
		NetworkErrors:      m.NetworkErrors.Load(),
		ClientErrors:       m.ClientErrors.Load(),
		ServerErrors:       m.ServerErrors.Load(),
		BusinessErrors:     m.BusinessErrors.Load(),
		ProtocolErrors:     m.ProtocolErrors.Load(),
		ChannelConnects:    m.ChannelConnects.Load(),
		ChannelFailures:    m.ChannelFailures.Load(),
		ChannelReconnects:  m.ChannelReconnects.Load(),
		EventsDispatched:   m.EventsDispatched.Load(),
		EventsDropped:      m.EventsDropped.Load(),
		ChannelMessagesOut: m.ChannelMessagesOut.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"requests", s.Requests,
		"transport_failures", s.TransportFailures,
		"channel_connects", s.ChannelConnects,
		"channel_reconnects", s.ChannelReconnects,
		"events", s.EventsDispatched,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
