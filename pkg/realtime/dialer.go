package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/cliniclink/pkg/version"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Conn is the subset of *websocket.Conn the channel uses.
// WriteControl and Close must be safe to call concurrently with the other methods.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a socket to a fully built URL. Cancelling ctx aborts the dial.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := wd.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("realtime: dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	return conn, nil
}

// withToken appends the session token as the token query parameter.
func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redactURL strips the query so the token never reaches the logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid>"
	}
	u.RawQuery = ""
	return u.String()
}
